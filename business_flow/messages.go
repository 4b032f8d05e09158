package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/linkdms/linkdms/app/services"
)

// aiDirectivePrefix marks a template whose body is an instruction for the
// text generator rather than literal message copy
const aiDirectivePrefix = "AI:"

// PersonalizeMessage renders an outreach message for one prospect. Templates
// beginning with the AI directive are expanded by the text generator; any
// failure falls back to the literal template with placeholder substitution,
// so a message is always produced.
func PersonalizeMessage(ctx context.Context, textGen services.TextGenService, template, firstName, headline string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return ""
	}

	if strings.HasPrefix(template, aiDirectivePrefix) {
		directive := strings.TrimSpace(strings.TrimPrefix(template, aiDirectivePrefix))
		if textGen != nil {
			prompt := fmt.Sprintf(
				"Write a short, friendly outreach message. Instruction: %s. "+
					"The recipient's first name is %q and their headline is %q. "+
					"Reply with only the message, under 280 characters, no quotes.",
				directive, firstName, headline)
			msg, err := textGen.Complete(ctx, prompt)
			if err == nil {
				return msg
			}
			log.Printf("message personalization failed, using literal template: %v", err)
		}
		template = directive
	}

	return substitutePlaceholders(template, firstName)
}

func substitutePlaceholders(template, firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return strings.NewReplacer(
		"{first_name}", name,
		"{firstName}", name,
	).Replace(template)
}

package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/linkdms/linkdms/app/services"
)

// manualTransforms are the deterministic query variations. The same index
// always yields the same string for the same base keywords, which is what
// makes a cursor position safe to resume after a restart.
var manualTransforms = []func(string) string{
	func(base string) string { return base },
	func(base string) string { return base + " founder" },
	func(base string) string { return base + " startup" },
	func(base string) string { return base + " CEO" },
	func(base string) string { return "head of " + base },
	func(base string) string { return base + " director" },
	func(base string) string { return base + " consultant" },
	func(base string) string { return base + " expert" },
	func(base string) string { return base + " entrepreneur" },
	func(base string) string { return base + " leader" },
}

// queryStopwords are filtered out when a long variant is truncated down to
// its content-bearing tokens
var queryStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "for": true, "in": true, "with": true, "to": true,
	"at": true, "on": true, "by": true, "is": true, "are": true,
}

const maxQueryLength = 60

// QueryVariationGenerator produces indexed variations of a campaign's base
// keywords. Indices below the manual set are deterministic; overflow indices
// ask the text generator for a fresh variant biased away from the history of
// previously used ones.
type QueryVariationGenerator struct {
	textGen services.TextGenService
	history []string
}

// NewQueryVariationGenerator creates a new variation generator. The text
// generator may be nil; overflow indices then cycle the manual set.
func NewQueryVariationGenerator(textGen services.TextGenService) *QueryVariationGenerator {
	return &QueryVariationGenerator{textGen: textGen}
}

// Variant returns the search query for the given variation index
func (g *QueryVariationGenerator) Variant(ctx context.Context, baseKeywords string, index int) string {
	base := strings.TrimSpace(baseKeywords)
	if index < 0 {
		index = 0
	}

	var out string
	if index < len(manualTransforms) {
		out = manualTransforms[index](base)
	} else {
		out = g.generatedVariant(ctx, base, index)
	}

	out = postProcessQuery(out)
	g.history = append(g.history, out)
	return out
}

func (g *QueryVariationGenerator) generatedVariant(ctx context.Context, base string, index int) string {
	if g.textGen == nil {
		return manualTransforms[index%len(manualTransforms)](base)
	}

	prompt := fmt.Sprintf(
		"Rewrite this people-search query with different but related wording: %q. "+
			"Avoid these already used variants: %s. "+
			"Reply with only the new query, 2 to 5 words, no quotes.",
		base, strings.Join(g.history, "; "))

	variant, err := g.textGen.Complete(ctx, prompt)
	if err != nil {
		log.Printf("variation generator: falling back to manual set: %v", err)
		return manualTransforms[index%len(manualTransforms)](base)
	}
	return variant
}

// postProcessQuery normalizes a variant so the downstream search URL stays
// well-formed: quotes stripped, OR/comma separators collapsed to spaces, and
// over-long results truncated to the top 3 content tokens.
func postProcessQuery(q string) string {
	q = strings.NewReplacer(`"`, "", "'", "", "`", "").Replace(q)

	fields := strings.Fields(q)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ",")
		if f == "" || strings.EqualFold(f, "or") {
			continue
		}
		tokens = append(tokens, f)
	}
	q = strings.Join(tokens, " ")

	if len(q) <= maxQueryLength {
		return q
	}

	content := make([]string, 0, 3)
	for _, t := range tokens {
		if queryStopwords[strings.ToLower(t)] {
			continue
		}
		content = append(content, t)
		if len(content) == 3 {
			break
		}
	}
	if len(content) == 0 {
		return q[:maxQueryLength]
	}
	return strings.Join(content, " ")
}

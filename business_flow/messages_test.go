package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersonalizeMessage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		template  string
		firstName string
		textGen   *fakeTextGen
		want      string
	}{
		{
			name:      "empty template yields empty message",
			template:  "",
			firstName: "Sam",
			want:      "",
		},
		{
			name:      "placeholder substitution",
			template:  "Hi {first_name}, loved your post!",
			firstName: "Sam",
			want:      "Hi Sam, loved your post!",
		},
		{
			name:      "camel case placeholder substitution",
			template:  "Hi {firstName}!",
			firstName: "Sam",
			want:      "Hi Sam!",
		},
		{
			name:      "missing name falls back to a neutral greeting",
			template:  "Hi {first_name}!",
			firstName: "",
			want:      "Hi there!",
		},
		{
			name:      "ai directive expanded by the text generator",
			template:  "AI: mention their industry",
			firstName: "Sam",
			textGen:   &fakeTextGen{reply: "Hi Sam, fellow fintech builder!"},
			want:      "Hi Sam, fellow fintech builder!",
		},
		{
			name:      "ai directive falls back to literal text on error",
			template:  "AI: Hello {first_name}",
			firstName: "Sam",
			textGen:   &fakeTextGen{err: errors.New("model unavailable")},
			want:      "Hello Sam",
		},
		{
			name:      "ai directive without generator uses literal text",
			template:  "AI: Hello {first_name}",
			firstName: "Sam",
			want:      "Hello Sam",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.textGen != nil {
				got = PersonalizeMessage(ctx, tt.textGen, tt.template, tt.firstName, "")
			} else {
				got = PersonalizeMessage(ctx, nil, tt.template, tt.firstName, "")
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariantDeterministicForManualIndices(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < len(manualTransforms); i++ {
		a := NewQueryVariationGenerator(nil).Variant(ctx, "saas founder", i)
		b := NewQueryVariationGenerator(nil).Variant(ctx, "saas founder", i)
		assert.Equal(t, a, b, "index %d must be deterministic", i)
		assert.NotEmpty(t, a)
	}
}

func TestVariantDistinctAcrossManualIndices(t *testing.T) {
	ctx := context.Background()
	gen := NewQueryVariationGenerator(nil)

	seen := make(map[string]int)
	for i := 0; i < len(manualTransforms); i++ {
		v := gen.Variant(ctx, "marketing", i)
		if prev, ok := seen[v]; ok {
			t.Fatalf("indices %d and %d produced the same variant %q", prev, i, v)
		}
		seen[v] = i
	}
}

func TestVariantOverflowWithoutTextGen(t *testing.T) {
	ctx := context.Background()
	gen := NewQueryVariationGenerator(nil)

	// overflow indices cycle the manual set when no generator is wired
	v10 := gen.Variant(ctx, "marketing", 10)
	v0 := NewQueryVariationGenerator(nil).Variant(ctx, "marketing", 0)
	assert.Equal(t, v0, v10)
}

func TestVariantOverflowFallsBackOnTextGenError(t *testing.T) {
	ctx := context.Background()
	gen := NewQueryVariationGenerator(&fakeTextGen{err: errors.New("model unavailable")})

	v := gen.Variant(ctx, "marketing", 12)
	assert.Equal(t, NewQueryVariationGenerator(nil).Variant(ctx, "marketing", 2), v)
}

func TestVariantOverflowUsesTextGen(t *testing.T) {
	ctx := context.Background()
	tg := &fakeTextGen{reply: "growth marketing leads"}
	gen := NewQueryVariationGenerator(tg)

	v := gen.Variant(ctx, "marketing", 15)
	assert.Equal(t, "growth marketing leads", v)
	assert.Equal(t, 1, tg.calls)
}

func TestPostProcessQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain query untouched", in: "saas founder", want: "saas founder"},
		{name: "quotes stripped", in: `"saas" 'founder'`, want: "saas founder"},
		{name: "or separators collapsed", in: "saas OR fintech or healthtech", want: "saas fintech healthtech"},
		{name: "commas trimmed", in: "saas, fintech, healthtech", want: "saas fintech healthtech"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postProcessQuery(tt.in))
		})
	}
}

func TestPostProcessQueryTruncatesLongQueries(t *testing.T) {
	long := "the best enterprise blockchain consulting services for the modern distributed organization"
	got := postProcessQuery(long)

	assert.LessOrEqual(t, len(got), maxQueryLength)
	assert.Equal(t, "best enterprise blockchain", got)
}

func TestVariantLengthBounded(t *testing.T) {
	ctx := context.Background()
	tg := &fakeTextGen{reply: fmt.Sprintf("%s consulting services", strings.Repeat("verylongword ", 10))}
	gen := NewQueryVariationGenerator(tg)

	v := gen.Variant(ctx, "consulting", 11)
	assert.LessOrEqual(t, len(v), maxQueryLength)
}

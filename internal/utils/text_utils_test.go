package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "whole", tp.TruncateText("whole", 0))

	got := tp.TruncateText("héllo world", 2)
	assert.True(t, strings.HasPrefix(got, "h\n[... Content truncated"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
	// e + combining acute composes to a single rune
	assert.Equal(t, "\u00e9", tp.SanitizeUTF8("e\u0301"))
}

func TestExcerpt(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "a b c", tp.Excerpt("  a\n\tb   c ", 0))
	assert.Equal(t, "a b", tp.Excerpt("a   b c", 3))
	assert.Equal(t, "", tp.Excerpt("日本", 2))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "...", Preview("...", 15))
	assert.Equal(t, "Please verify y...", Preview("Please verify your details", 15))
	assert.Equal(t, "日本...", Preview("日本語", 2))
}

func TestProperty_ExcerptIsBoundedAndValid(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("excerpt_fits_and_is_valid_utf8", prop.ForAll(
		func(text string, max int) bool {
			out := tp.Excerpt(text, max)
			return len(out) <= max && utf8.ValidString(out)
		},
		gen.AnyString(),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}

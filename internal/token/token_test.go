package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		expected string
	}{
		{"plus", Plus, "+"},
		{"shl-eq", ShlEq, "<<="},
		{"keyword struct", KwStruct, "struct"},
		{"eof", EOF, "EOF"},
		{"unknown kind value", Kind(9999), "?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}

func TestKeywordsTableMatchesKindString(t *testing.T) {
	// Every keyword spelling must round-trip through Keywords -> Kind
	// -> String back to the same spelling (spec.md §4.1).
	for spelling, kind := range Keywords {
		assert.Equal(t, spelling, kind.String(), "spelling=%s", spelling)
	}
}

func TestNewTextTruncates(t *testing.T) {
	short := "abc"
	assert.Equal(t, short, NewText(short))

	long := make([]byte, MaxTextLen+50)
	for i := range long {
		long[i] = 'x'
	}
	got := NewText(string(long))
	assert.Len(t, got, MaxTextLen)
}

func TestPositionString(t *testing.T) {
	p := Position{Offset: 10, Line: 3, Column: 7}
	assert.Equal(t, "3:7", p.String())
}

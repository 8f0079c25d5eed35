package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupe(t *testing.T) {
	tests := []struct {
		name   string
		input  []string
		expect []string
	}{
		{name: "nil input", input: nil, expect: nil},
		{name: "empty input", input: []string{}, expect: []string{}},
		{name: "keeps first occurrence order", input: []string{"b", "a", "b", "c", "a"}, expect: []string{"b", "a", "c"}},
		{name: "exact comparison", input: []string{"abc", " abc", "ABC"}, expect: []string{"abc", " abc", "ABC"}},
		{name: "keeps one empty value", input: []string{"", "x", ""}, expect: []string{"", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Dedupe(tt.input))
		})
	}
}

func TestNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NonEmpty([]string{"", "a", "", "b"}))
	assert.Empty(t, NonEmpty([]string{"", ""}))
}

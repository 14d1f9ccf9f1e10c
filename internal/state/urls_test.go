package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "hello there", nil},
		{"single", "look https://go.dev/doc", []string{"https://go.dev/doc"}},
		{"trailing punctuation", "see (https://example.com/a).", []string{"https://example.com/a"}},
		{"several in order", "http://a.io and HTTPS://b.io/x?y=1", []string{"http://a.io", "HTTPS://b.io/x?y=1"}},
		{"scheme only", "https://", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractURLs(tt.text))
		})
	}
}

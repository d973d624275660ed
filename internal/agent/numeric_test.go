package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFullyWrittenNumber(t *testing.T) {
	cases := map[string]bool{
		"394328000000":   true,
		"1,234,567":      true,
		"-500000":        true,
		"-":              true,
		"(500000)":       false,
		"394.3B":         false,
		"394328M":        false,
		"1.2K":           false,
		"abc":            false,
		"394328000000.00": true,
	}

	for input, want := range cases {
		assert.Equal(t, want, isFullyWrittenNumber(input), "input=%q", input)
	}
}

package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsTable(t *testing.T) {
	valid := "| Line Item | Q3 2026 | Q2 2026 | Q1 2026 |\n| --- | --- | --- | --- |\n| Revenue | 1000000000 | 900000000 | 850000000 |\n"
	assert.True(t, containsTable(valid))

	assert.False(t, containsTable(""))
	assert.False(t, containsTable("I could not read the table in this screenshot."))
}

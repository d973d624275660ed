package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ternarybob/statement-agent/internal/domain"
)

func newFixtureWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]string{
		{"", "2025-10-31", "2025-07-31"},
		{"", "Q3 2026", "Q2 2026"},
		{"Revenue", "1000000000", "900000000"},
		{"Total Assets", "", "500000000"},
	}
	for r, row := range rows {
		for c, v := range row {
			ref, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue("Sheet1", ref, v))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestMutator_UpdateCell_RejectsOverwrite(t *testing.T) {
	m, err := Open(newFixtureWorkbook(t))
	require.NoError(t, err)
	defer m.Close()

	err = m.UpdateCell("Sheet1", "B3", "1100000000")
	require.ErrorIs(t, err, domain.ErrCellConflict)
}

func TestMutator_UpdateCell_AllowsEmpty(t *testing.T) {
	m, err := Open(newFixtureWorkbook(t))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.UpdateCell("Sheet1", "B4", "450000000"))

	empty, err := m.IsEmpty("Sheet1", "B4")
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestMutator_InsertNewPeriodColumn(t *testing.T) {
	m, err := Open(newFixtureWorkbook(t))
	require.NoError(t, err)
	defer m.Close()

	rowMap, err := m.InsertNewPeriodColumn("Sheet1", "2026-01-31", "Q4 2026")
	require.NoError(t, err)

	b1, _ := m.file.GetCellValue("Sheet1", "B1")
	b2, _ := m.file.GetCellValue("Sheet1", "B2")
	assert.Equal(t, "2026-01-31", b1)
	assert.Equal(t, "Q4 2026", b2)

	c1, _ := m.file.GetCellValue("Sheet1", "C1")
	assert.Equal(t, "2025-10-31", c1)

	// Revenue row (3) shifted to C3, Total Assets (4) has no C value.
	var gotRevenue bool
	for _, e := range rowMap {
		if e.Label == "Revenue" {
			gotRevenue = true
			assert.Equal(t, "B3", e.CellReference)
		}
	}
	assert.True(t, gotRevenue)
}

func TestMutator_InsertNewPeriodColumn_RefusesSecondCall(t *testing.T) {
	m, err := Open(newFixtureWorkbook(t))
	require.NoError(t, err)
	defer m.Close()

	_, err = m.InsertNewPeriodColumn("Sheet1", "2026-01-31", "Q4 2026")
	require.NoError(t, err)

	_, err = m.InsertNewPeriodColumn("Sheet1", "2026-01-31", "Q4 2026")
	require.ErrorIs(t, err, domain.ErrAlreadyInserted)
}

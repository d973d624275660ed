package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
)

type fakeMutator struct {
	inserted bool
}

func (f *fakeMutator) ReadStructure(sheet string) (domain.SheetStructure, error) {
	return domain.SheetStructure{SheetName: sheet}, nil
}
func (f *fakeMutator) SheetNames() []string { return []string{"Sheet1"} }
func (f *fakeMutator) IsEmpty(sheet, cellRef string) (bool, error) {
	return cellRef != "B3", nil
}
func (f *fakeMutator) UpdateCell(sheet, cellRef, value string) error {
	if cellRef == "B3" {
		return domain.ErrCellConflict
	}
	return nil
}
func (f *fakeMutator) InsertNewPeriodColumn(sheet, dateHeader, periodHeader string) ([]domain.RowMapEntry, error) {
	if f.inserted {
		return nil, domain.ErrAlreadyInserted
	}
	f.inserted = true
	return []domain.RowMapEntry{{RowNumber: 3, Label: "Revenue", CellReference: "B3"}}, nil
}
func (f *fakeMutator) Save() ([]byte, error) { return []byte("saved"), nil }
func (f *fakeMutator) Close() error          { return nil }

func newTestDispatcher(t *testing.T) (*Dispatcher, *Context) {
	t.Helper()
	job := domain.TickerJob{Ticker: "ZM", ReportDate: "2026-02-28", FiscalPeriodEnd: "2026-01-31"}
	ctx := NewContext("test-run-id", job, t.TempDir())
	ctx.CurrentFile = "financials-quarterly-income"
	ctx.SetMutator(ctx.CurrentFile, &fakeMutator{})

	d := NewDispatcher(ctx, nil, nil, nil, common.GetLogger())
	return d, ctx
}

func TestDispatch_UpdateExcelCell_RejectsAbbreviated(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result := d.Dispatch(context.Background(), interfaces.ToolCall{
		Name:  ToolUpdateExcelCell,
		Input: []byte(`{"sheet":"Sheet1","cell_reference":"B4","value":"394.3B"}`),
	})

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "numeric format rejected")
}

func TestDispatch_UpdateExcelCell_RejectsConflict(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result := d.Dispatch(context.Background(), interfaces.ToolCall{
		Name:  ToolUpdateExcelCell,
		Input: []byte(`{"sheet":"Sheet1","cell_reference":"B3","value":"100000"}`),
	})

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "cell conflict")
}

func TestDispatch_UpdateExcelCell_AcceptsWrite(t *testing.T) {
	d, ctx := newTestDispatcher(t)

	result := d.Dispatch(context.Background(), interfaces.ToolCall{
		Name:  ToolUpdateExcelCell,
		Input: []byte(`{"sheet":"Sheet1","cell_reference":"B4","value":"450000000"}`),
	})

	require.False(t, result.IsError)
	assert.Equal(t, 1, ctx.CellsWritten(ctx.CurrentFile))
}

func TestDispatch_InsertPeriodColumn_OverridesDateHeader(t *testing.T) {
	d, ctx := newTestDispatcher(t)

	result := d.Dispatch(context.Background(), interfaces.ToolCall{
		Name:  ToolInsertPeriodColumn,
		Input: []byte(`{"sheet":"Sheet1","date_header":"bogus-date","period_header":"Q4 2026"}`),
	})

	require.False(t, result.IsError)
	assert.Contains(t, result.Content, "2026-01-31")
	assert.NotContains(t, result.Content, "bogus-date")
	assert.Equal(t, "Q4 2026", ctx.DetectedQuarter)
}

func TestDispatch_InsertPeriodColumn_RefusesSecondInsert(t *testing.T) {
	d, _ := newTestDispatcher(t)

	first := d.Dispatch(context.Background(), interfaces.ToolCall{
		Name:  ToolInsertPeriodColumn,
		Input: []byte(`{"sheet":"Sheet1","date_header":"x","period_header":"Q4 2026"}`),
	})
	require.False(t, first.IsError)

	second := d.Dispatch(context.Background(), interfaces.ToolCall{
		Name:  ToolInsertPeriodColumn,
		Input: []byte(`{"sheet":"Sheet1","date_header":"x","period_header":"Q4 2026"}`),
	})
	assert.True(t, second.IsError)
	assert.Contains(t, second.Content, "already inserted")
}

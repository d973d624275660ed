// Package agent implements the per-ticker orchestrator: the
// tool-calling control loop, the Q4-gate, the numeric-format guard,
// and the terminal callback.
package agent

import (
	"sync"
	"time"

	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
)

// Context is the mutable per-ticker record held across one run's
// tool-dispatch loop. Created at run start, destroyed after the
// callback; the browser and workbooks are explicitly closed on every
// exit path.
type Context struct {
	mu sync.Mutex

	RunID   string
	Job     domain.TickerJob
	WorkDir string

	Browser interfaces.BrowserSession
	Cache   interfaces.ResponseCache

	mutators map[string]interfaces.SpreadsheetMutator // bucket -> open workbook

	CurrentFile string

	filesWithWrites map[string]bool
	cellsWritten    map[string]int

	DetectedQuarter string // set by the first quarterly insert_new_period_column

	Notes       []domain.Note
	DataSources []string

	fatalErr error // set when a tool dispatch hits a run-ending error (e.g. LoginFailed)
}

// NewContext allocates a fresh agent context for one ticker run.
func NewContext(runID string, job domain.TickerJob, workDir string) *Context {
	return &Context{
		RunID:           runID,
		Job:             job,
		WorkDir:         workDir,
		mutators:        map[string]interfaces.SpreadsheetMutator{},
		filesWithWrites: map[string]bool{},
		cellsWritten:    map[string]int{},
	}
}

func (c *Context) SetMutator(bucket string, m interfaces.SpreadsheetMutator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutators[bucket] = m
}

func (c *Context) Mutator(bucket string) (interfaces.SpreadsheetMutator, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.mutators[bucket]
	return m, ok
}

// AllMutators returns every open workbook, for the final close-on-exit
// sweep.
func (c *Context) AllMutators() map[string]interfaces.SpreadsheetMutator {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interfaces.SpreadsheetMutator, len(c.mutators))
	for k, v := range c.mutators {
		out[k] = v
	}
	return out
}

func (c *Context) IncrementCellsWritten(bucket string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cellsWritten[bucket]++
	c.filesWithWrites[bucket] = true
	return c.cellsWritten[bucket]
}

func (c *Context) CellsWritten(bucket string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cellsWritten[bucket]
}

func (c *Context) FilesUpdatedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ok := range c.filesWithWrites {
		if ok {
			n++
		}
	}
	return n
}

func (c *Context) AddNote(category domain.NoteCategory, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notes = append(c.Notes, domain.Note{
		Category:  category,
		Text:      text,
		File:      c.CurrentFile,
		Timestamp: time.Now(),
	})
}

// ScratchpadSummary renders the accumulated notes for inclusion in the
// next file's prompt.
func (c *Context) ScratchpadSummary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Notes) == 0 {
		return "(no notes yet)"
	}
	var sb []byte
	for _, n := range c.Notes {
		sb = append(sb, []byte("["+string(n.Category)+"] "+n.File+": "+n.Text+"\n")...)
	}
	return string(sb)
}

func (c *Context) AddDataSource(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.DataSources {
		if s == source {
			return
		}
	}
	c.DataSources = append(c.DataSources, source)
}

// SetFatalErr records a run-ending error encountered during tool
// dispatch, e.g. LoginFailed, which fails the whole ticker. Only the
// first call takes effect.
func (c *Context) SetFatalErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
}

// FatalErr returns the run-ending error set by SetFatalErr, if any.
func (c *Context) FatalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalErr
}

// RecordDetectedQuarter stores the run's detected quarter exactly once
// — the first quarterly file's successful insertion. Subsequent calls
// (e.g. from a later quarterly file) do not overwrite it, preserving
// the happens-before relationship between the first quarterly
// insertion and annual-file scheduling.
func (c *Context) RecordDetectedQuarter(periodHeader string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DetectedQuarter == "" {
		c.DetectedQuarter = periodHeader
	}
}

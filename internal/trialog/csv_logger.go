// Package trialog writes the per-trial results log of a search run.
package trialog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/search"
)

// Header is the first line of every trial log.
const Header = "number,step,priceEncouragement,sharpe_ratio,mdd,valid"

// CSVLogger appends one CSV record per finalized trial.
// The log is write-only; nothing in the search reads it back.
type CSVLogger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	log    zerolog.Logger
	rows   int
}

// Create truncates (or creates) the file at path, including missing parent
// directories, and writes the header.
func Create(path string, log zerolog.Logger) (*CSVLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trial log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trial log: %w", err)
	}
	l, err := New(f, log)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l.closer = f
	return l, nil
}

// New writes the header to w and returns a logger appending to it.
func New(w io.Writer, log zerolog.Logger) (*CSVLogger, error) {
	if _, err := io.WriteString(w, Header+"\n"); err != nil {
		return nil, fmt.Errorf("write trial log header: %w", err)
	}
	return &CSVLogger{w: w, log: log}, nil
}

// OnTrialFinalized implements search.Callback.
func (l *CSVLogger) OnTrialFinalized(_ context.Context, t domain.Trial) error {
	line := FormatRecord(t)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := io.WriteString(l.w, line+"\n"); err != nil {
		return fmt.Errorf("write trial %d: %w", t.Number, err)
	}
	l.rows++
	l.log.Debug().Int("trial", t.Number).Str("row", line).Msg("trial logged")
	return nil
}

// Rows returns the number of records written, header excluded.
func (l *CSVLogger) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// Close closes the underlying file when the logger owns it.
func (l *CSVLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// FormatRecord renders one trial as a log record. Trials without metrics
// (failed evaluations) leave the metric fields empty and are never valid.
func FormatRecord(t domain.Trial) string {
	if t.Metrics == nil {
		return fmt.Sprintf("%d,%s,%s,,,False", t.Number, t.Params.Step, t.Params.PriceEncouragement)
	}
	return fmt.Sprintf("%d,%s,%s,%s,%s,%s",
		t.Number,
		t.Params.Step,
		t.Params.PriceEncouragement,
		formatFloat(t.Metrics.Sharpe.InexactFloat64()),
		formatFloat(t.Metrics.MaxDrawdown.InexactFloat64()),
		formatBool(t.ConstraintSatisfied),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

var _ search.Callback = (*CSVLogger)(nil)

package trialog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-tuner/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func params(step, pe string) domain.Parameters {
	return domain.Parameters{Step: dec(step), PriceEncouragement: dec(pe)}
}

func TestFormatRecord(t *testing.T) {
	obj := dec("1.5")
	cases := []struct {
		name  string
		trial domain.Trial
		want  string
	}{
		{
			name: "complete",
			trial: domain.Trial{
				Number: 0, Params: params("0.3", "0.12"), State: domain.TrialComplete,
				Objective: &obj, ConstraintSatisfied: true,
				Metrics: &domain.MetricsSnapshot{Sharpe: dec("1.5"), MaxDrawdown: dec("0.125")},
			},
			want: "0,0.3,0.12,1.5,0.125,True",
		},
		{
			name: "constraint violated",
			trial: domain.Trial{
				Number: 1, Params: params("1.9", "0"), State: domain.TrialPruned,
				PruneReason: domain.PruneConstraint,
				Metrics:     &domain.MetricsSnapshot{Sharpe: dec("2.25"), MaxDrawdown: dec("0.31")},
			},
			want: "1,1.9,0,2.25,0.31,False",
		},
		{
			name:  "failed",
			trial: domain.Trial{Number: 2, Params: params("0.5", "0.5"), State: domain.TrialFailed, FailureCause: "boom"},
			want:  "2,0.5,0.5,,,False",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatRecord(tc.trial))
		})
	}
}

func TestCSVLogger_WritesHeaderAndRows(t *testing.T) {
	var buf, logs bytes.Buffer
	l, err := New(&buf, zerolog.New(&logs).Level(zerolog.DebugLevel))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.OnTrialFinalized(ctx, domain.Trial{Number: 0, Params: params("0.1", "0.01"), State: domain.TrialFailed}))
	require.NoError(t, l.OnTrialFinalized(ctx, domain.Trial{Number: 1, Params: params("0.2", "0.02"), State: domain.TrialFailed}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t, "1,0.2,0.02,,,False", lines[2])
	assert.Equal(t, 2, l.Rows())
	assert.Contains(t, logs.String(), `"message":"trial logged"`)
}

func TestCreate_TruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "optimization.log.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale\nstale\n"), 0o644))

	l, err := Create(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.OnTrialFinalized(context.Background(), domain.Trial{Number: 0, Params: params("1", "0"), State: domain.TrialFailed}))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Header+"\n0,1,0,,,False\n", string(data))
}

type brokenWriter struct{ after int }

func (w *brokenWriter) Write(p []byte) (int, error) {
	if w.after == 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestCSVLogger_WriteErrorSurfaces(t *testing.T) {
	_, err := New(&brokenWriter{}, zerolog.Nop())
	require.Error(t, err)

	l, err := New(&brokenWriter{after: 1}, zerolog.Nop())
	require.NoError(t, err)
	err = l.OnTrialFinalized(context.Background(), domain.Trial{Number: 4, State: domain.TrialFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trial 4")
}

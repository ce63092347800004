package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

func makeBars(start time.Time, closes ...int64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		px := decimal.NewFromInt(c)
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      px, High: px, Low: px, Close: px,
			Volume: decimal.NewFromInt(1),
		}
	}
	return bars
}

func TestBarStore_InsertAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := makeBars(start, 3, 1, 2)
	// shuffle order to verify sorting
	bars[0], bars[2] = bars[2], bars[0]

	if err := store.InsertBulk(ctx, "VN30F1M", bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, "VN30F1M")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("bars not sorted at %d", i)
		}
	}
}

func TestBarStore_DuplicateKey(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, "X", makeBars(start, 1, 2)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	err := store.InsertBulk(ctx, "X", makeBars(start.Add(time.Hour), 5))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Intra-batch duplicate
	dup := makeBars(start.Add(10*time.Hour), 1)
	err = store.InsertBulk(ctx, "X", append(dup, dup...))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, "X", makeBars(start, 1, 2, 3, 4, 5)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "X", start.Add(time.Hour), start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	if !got[0].Close.Equal(decimal.NewFromInt(2)) || !got[2].Close.Equal(decimal.NewFromInt(4)) {
		t.Errorf("unexpected range: %v .. %v", got[0].Close, got[2].Close)
	}
}

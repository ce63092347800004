// Package dataset loads bar series and splits them into the in-sample set
// used by the search and the held-out set used for evaluation.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
)

// ErrMalformedCSV is returned for rows that cannot be parsed into a bar.
var ErrMalformedCSV = errors.New("malformed bar csv")

// timeLayouts are tried in order when parsing the timestamp column.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReadCSV parses bars from r. The expected columns are
// timestamp,open,high,low,close[,volume]; a header row is detected and skipped.
// Bars are returned sorted by timestamp; duplicate timestamps are rejected.
func ReadCSV(r io.Reader, symbol string) (*domain.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var bars []domain.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}
		bar, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Equal(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: duplicate timestamp %s", ErrMalformedCSV, bars[i].Timestamp.Format(time.RFC3339))
		}
	}

	return &domain.Dataset{Symbol: symbol, Bars: bars}, nil
}

// isHeader reports whether the first record is a column header.
func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "timestamp" || first == "time" || first == "date" || first == "datetime"
}

// parseRecord converts one csv record into a Bar.
func parseRecord(record []string) (domain.Bar, error) {
	if len(record) < 5 {
		return domain.Bar{}, fmt.Errorf("expected at least 5 columns, got %d", len(record))
	}

	ts, err := parseTimestamp(strings.TrimSpace(record[0]))
	if err != nil {
		return domain.Bar{}, err
	}

	values := make([]decimal.Decimal, 5)
	for i := 1; i < len(record) && i <= 5; i++ {
		v, err := decimal.NewFromString(strings.TrimSpace(record[i]))
		if err != nil {
			return domain.Bar{}, fmt.Errorf("column %d: %w", i, err)
		}
		values[i-1] = v
	}

	return domain.Bar{
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// parseTimestamp accepts the layouts in timeLayouts or unix seconds.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// WriteCSV writes bars in the format accepted by ReadCSV.
func WriteCSV(w io.Writer, ds *domain.Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range ds.Bars {
		record := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String(),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write bar: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

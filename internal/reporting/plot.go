package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"strategy-tuner/internal/domain"
)

// Plotter turns evaluation trajectories into artifacts. Each method returns
// the path of the artifact it wrote.
type Plotter interface {
	PlotNAV(nav []domain.NAVPoint) (string, error)
	PlotDrawdown(nav []domain.NAVPoint) (string, error)
	PlotInventory(inv []domain.InventoryPoint) (string, error)
}

// Series file names written by SeriesPlotter.
const (
	NAVFile       = "nav.csv"
	DrawdownFile  = "drawdown.csv"
	InventoryFile = "inventory.csv"
)

// SeriesPlotter writes plot-ready CSV series into Dir.
type SeriesPlotter struct {
	Dir string
}

// PlotNAV writes index,timestamp,nav.
func (p SeriesPlotter) PlotNAV(nav []domain.NAVPoint) (string, error) {
	return p.write(NAVFile, RenderNAVCSV(nav))
}

// PlotDrawdown writes index,timestamp,drawdown with drawdown as a fraction of the running peak.
func (p SeriesPlotter) PlotDrawdown(nav []domain.NAVPoint) (string, error) {
	return p.write(DrawdownFile, RenderDrawdownCSV(nav))
}

// PlotInventory writes index,timestamp,position.
func (p SeriesPlotter) PlotInventory(inv []domain.InventoryPoint) (string, error) {
	return p.write(InventoryFile, RenderInventoryCSV(inv))
}

func (p SeriesPlotter) write(name, content string) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}
	path := filepath.Join(p.Dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// RenderNAVCSV renders a NAV trajectory as CSV.
func RenderNAVCSV(nav []domain.NAVPoint) string {
	var sb strings.Builder
	sb.WriteString("index,timestamp,nav\n")
	for _, p := range nav {
		sb.WriteString(fmt.Sprintf("%d,%s,%s\n", p.Index, p.Timestamp.Format(time.RFC3339), p.NAV))
	}
	return sb.String()
}

// RenderDrawdownCSV renders the running drawdown of a NAV trajectory as CSV.
func RenderDrawdownCSV(nav []domain.NAVPoint) string {
	var sb strings.Builder
	sb.WriteString("index,timestamp,drawdown\n")
	if len(nav) == 0 {
		return sb.String()
	}
	peak := nav[0].NAV
	for _, p := range nav {
		if p.NAV.GreaterThan(peak) {
			peak = p.NAV
		}
		dd := "0"
		if peak.IsPositive() {
			dd = peak.Sub(p.NAV).Div(peak).String()
		}
		sb.WriteString(fmt.Sprintf("%d,%s,%s\n", p.Index, p.Timestamp.Format(time.RFC3339), dd))
	}
	return sb.String()
}

// RenderInventoryCSV renders an inventory trace as CSV.
func RenderInventoryCSV(inv []domain.InventoryPoint) string {
	var sb strings.Builder
	sb.WriteString("index,timestamp,position\n")
	for _, p := range inv {
		sb.WriteString(fmt.Sprintf("%d,%s,%d\n", p.Index, p.Timestamp.Format(time.RFC3339), p.Position))
	}
	return sb.String()
}

var _ Plotter = SeriesPlotter{}

package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/observability"
)

// WriteFiles renders r as markdown plus the equity and trade CSVs into dir,
// creating it if needed. Files are named after the run ID. Returns the
// written paths.
func WriteFiles(dir string, r *Report, curve []*domain.EquityCurvePoint, trades []*domain.TradeRecord) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	id := r.Run.RunID
	files := []struct {
		name    string
		content string
	}{
		{fmt.Sprintf("report_%s.md", id), RenderMarkdown(r)},
		{fmt.Sprintf("equity_%s.csv", id), RenderEquityCSV(curve)},
		{fmt.Sprintf("trades_%s.csv", id), RenderTradesCSV(trades)},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}

	observability.RecordReport()
	return paths, nil
}

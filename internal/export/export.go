// Package export writes a day's prediction records to CSV and JSON files for
// spreadsheet review and downstream tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mrenaud/footoracle/internal/logger"
	"github.com/mrenaud/footoracle/internal/models"
)

var csvHeader = []string{
	"fixture_id", "date", "league", "home_team", "away_team",
	"method", "market", "selection", "prob", "odd", "value",
}

// Writer exports prediction files into a directory, one CSV and one JSON file
// per day. Re-exporting a day overwrites its files.
type Writer struct {
	dir string
}

// NewWriter creates the export directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) path(day time.Time, ext string) string {
	return filepath.Join(w.dir, "predictions_"+day.UTC().Format("2006-01-02")+ext)
}

// WriteDay writes both files for the given day and returns their paths.
func (w *Writer) WriteDay(day time.Time, preds []models.Prediction) (csvPath, jsonPath string, err error) {
	csvPath = w.path(day, ".csv")
	if err = w.writeCSV(csvPath, preds); err != nil {
		return "", "", err
	}
	jsonPath = w.path(day, ".json")
	if err = w.writeJSON(jsonPath, preds); err != nil {
		return "", "", err
	}
	logger.Info("exported %d prediction records to %s and %s", len(preds), csvPath, jsonPath)
	return csvPath, jsonPath, nil
}

func (w *Writer) writeCSV(path string, preds []models.Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, p := range preds {
		odd, value := "", ""
		if p.Odd != nil {
			odd = strconv.FormatFloat(*p.Odd, 'f', 2, 64)
		}
		if p.Value != nil {
			value = strconv.FormatFloat(*p.Value, 'f', 4, 64)
		}
		record := []string{
			p.FixtureID,
			p.Date.UTC().Format(time.RFC3339),
			p.League,
			p.HomeTeam,
			p.AwayTeam,
			p.Method,
			p.Market,
			p.Selection,
			strconv.FormatFloat(p.Prob, 'f', 4, 64),
			odd,
			value,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return f.Close()
}

func (w *Writer) writeJSON(path string, preds []models.Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if preds == nil {
		preds = []models.Prediction{} // an empty day exports [] rather than null
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(preds); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return f.Close()
}

package leads

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/openers/internal/model"
)

// Format is an export file format.
type Format string

// Supported export formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("leads: unknown export format %q", s)
	}
}

// exportColumns defines the ordered CSV and XLSX output columns.
var exportColumns = []string{
	"Company",
	"Line",
	"Artifact Type",
	"Artifact Text",
	"Evidence Source",
	"Evidence URL",
	"Confidence Tier",
	"Mode",
	"Attempts",
	"Generated At",
	"Result ID",
	"Run ID",
}

// Export writes results to w in the given format.
func Export(w io.Writer, format Format, results []model.Result) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, results)
	case FormatXLSX:
		return exportXLSX(w, results)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if results == nil {
			results = []model.Result{}
		}
		return eris.Wrap(enc.Encode(results), "leads: encode json")
	}
}

// ExportFile writes results to path, creating or truncating it.
func ExportFile(path string, format Format, results []model.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "leads: create export file")
	}
	if err := Export(f, format, results); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "leads: close export file")
}

func exportCSV(w io.Writer, results []model.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return eris.Wrap(err, "leads: write csv header")
	}
	for _, r := range results {
		if err := cw.Write(resultRow(r)); err != nil {
			return eris.Wrap(err, "leads: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "leads: flush csv")
}

func exportXLSX(w io.Writer, results []model.Result) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Openers")
	if err != nil {
		return eris.Wrap(err, "leads: add sheet")
	}
	addRow(sheet, exportColumns)
	for _, r := range results {
		addRow(sheet, resultRow(r))
	}
	return eris.Wrap(f.Write(w), "leads: write xlsx")
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

// resultRow maps a Result to an export row.
func resultRow(r model.Result) []string {
	var generated string
	if !r.GeneratedAt.IsZero() {
		generated = r.GeneratedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		r.Company,
		r.Line,
		string(r.ArtifactType),
		r.ArtifactText,
		r.EvidenceSource,
		r.EvidenceURL,
		string(r.ConfidenceTier),
		string(r.Mode),
		strconv.Itoa(r.Attempts),
		generated,
		r.ID,
		r.RunID,
	}
}

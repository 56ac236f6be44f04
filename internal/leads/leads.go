// Package leads reads lead lists exported from CRMs and spreadsheets and
// writes personalization results back out.
package leads

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/openers/internal/model"
)

// field is a Lead attribute a column can map to.
type field int

const (
	fieldCompany field = iota
	fieldDescription
	fieldLocation
	fieldCity
	fieldState
	fieldSite
	fieldTechnologies
	fieldKeywords
	fieldRating
	fieldReviewCount
	fieldSourceID
	fieldNotionID
	fieldSalesforceID
)

// columnAliases maps normalized header names to fields. Headers are
// normalized by lowercasing and dropping everything but letters and digits.
var columnAliases = map[string]field{
	"company":            fieldCompany,
	"companyname":        fieldCompany,
	"name":               fieldCompany,
	"account":            fieldCompany,
	"accountname":        fieldCompany,
	"organization":       fieldCompany,
	"description":        fieldDescription,
	"companydescription": fieldDescription,
	"about":              fieldDescription,
	"summary":            fieldDescription,
	"location":           fieldLocation,
	"hq":                 fieldLocation,
	"headquarters":       fieldLocation,
	"city":               fieldCity,
	"billingcity":        fieldCity,
	"state":              fieldState,
	"billingstate":       fieldState,
	"website":            fieldSite,
	"domain":             fieldSite,
	"url":                fieldSite,
	"siteurl":            fieldSite,
	"technologies":       fieldTechnologies,
	"techstack":          fieldTechnologies,
	"tools":              fieldTechnologies,
	"keywords":           fieldKeywords,
	"tags":               fieldKeywords,
	"rating":             fieldRating,
	"aggregaterating":    fieldRating,
	"googlerating":       fieldRating,
	"reviewcount":        fieldReviewCount,
	"reviews":            fieldReviewCount,
	"totalreviewcount":   fieldReviewCount,
	"id":                 fieldSourceID,
	"leadid":             fieldSourceID,
	"sourceid":           fieldSourceID,
	"notionpageid":       fieldNotionID,
	"salesforceid":       fieldSalesforceID,
	"accountid":          fieldSalesforceID,
}

var titleCaser = cases.Title(language.English)

// ReadFile parses a .csv or .xlsx lead list.
func ReadFile(path string) ([]model.Lead, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		return ParseRows(rows)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "leads: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ParseCSV(f)
	}
}

// ParseCSV reads a CSV lead list with a header row.
func ParseCSV(r io.Reader) ([]model.Lead, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "leads: read csv")
	}
	return ParseRows(records)
}

// ParseRows maps a header row plus data rows to leads. Rows without a
// company name are skipped and duplicates (by Lead.Key) keep the first row.
func ParseRows(records [][]string) ([]model.Lead, error) {
	if len(records) < 2 {
		return nil, eris.New("leads: no data rows")
	}

	cols := mapColumns(records[0])
	if _, ok := cols[fieldCompany]; !ok {
		return nil, eris.New("leads: missing company name column")
	}

	seen := make(map[string]bool)
	var out []model.Lead
	skipped := 0
	for i, row := range records[1:] {
		lead := buildLead(row, cols)
		if lead.CompanyName == "" {
			skipped++
			continue
		}
		if lead.SourceID == "" {
			lead.SourceID = "row-" + strconv.Itoa(i+2)
		}
		key := strings.ToLower(lead.CompanyName) + "|" + lead.Domain()
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true
		out = append(out, lead)
	}

	if skipped > 0 {
		zap.L().Debug("leads: skipped rows", zap.Int("skipped", skipped))
	}
	if len(out) == 0 {
		return nil, eris.New("leads: no valid leads found")
	}
	return out, nil
}

func mapColumns(header []string) map[field]int {
	cols := make(map[field]int, len(header))
	for i, h := range header {
		f, ok := columnAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := cols[f]; !dup {
			cols[f] = i
		}
	}
	return cols
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func buildLead(row []string, cols map[field]int) model.Lead {
	get := func(f field) string {
		idx, ok := cols[f]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	lead := model.Lead{
		CompanyName:  strings.Join(strings.Fields(get(fieldCompany)), " "),
		Description:  get(fieldDescription),
		SiteURL:      normalizeSite(get(fieldSite)),
		Technologies: splitList(get(fieldTechnologies)),
		Keywords:     splitList(get(fieldKeywords)),
		SourceID:     get(fieldSourceID),
		NotionPageID: get(fieldNotionID),
		SalesforceID: get(fieldSalesforceID),
	}

	lead.Location = get(fieldLocation)
	if lead.Location == "" {
		lead.Location = FormatLocation(get(fieldCity), get(fieldState))
	}

	if v := get(fieldRating); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 5 {
			lead.Rating = f
		}
	}
	if v := strings.ReplaceAll(get(fieldReviewCount), ",", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lead.ReviewCount = n
		}
	}
	return lead
}

// FormatLocation renders "City, ST" from raw city and state columns.
func FormatLocation(city, state string) string {
	city = titleCase(city)
	state = stateAbbreviation(state)
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}

// normalizeSite turns a bare domain into an https URL.
func normalizeSite(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return "https://" + lower
}

// splitList splits a multi-value cell on semicolons, commas or pipes.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == '|' })
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// titleCase converts "WEST JORDAN" to "West Jordan".
func titleCase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

// stateAbbreviation converts full state names to two-letter abbreviations.
// Two-letter input is uppercased; unknown names are title cased.
func stateAbbreviation(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	if len(upper) == 2 {
		return upper
	}
	if abbr, ok := stateMap[upper]; ok {
		return abbr
	}
	return titleCase(s)
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "leads: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("leads: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

var stateMap = map[string]string{
	"ALABAMA":              "AL",
	"ALASKA":               "AK",
	"ARIZONA":              "AZ",
	"ARKANSAS":             "AR",
	"CALIFORNIA":           "CA",
	"COLORADO":             "CO",
	"CONNECTICUT":          "CT",
	"DELAWARE":             "DE",
	"FLORIDA":              "FL",
	"GEORGIA":              "GA",
	"HAWAII":               "HI",
	"IDAHO":                "ID",
	"ILLINOIS":             "IL",
	"INDIANA":              "IN",
	"IOWA":                 "IA",
	"KANSAS":               "KS",
	"KENTUCKY":             "KY",
	"LOUISIANA":            "LA",
	"MAINE":                "ME",
	"MARYLAND":             "MD",
	"MASSACHUSETTS":        "MA",
	"MICHIGAN":             "MI",
	"MINNESOTA":            "MN",
	"MISSISSIPPI":          "MS",
	"MISSOURI":             "MO",
	"MONTANA":              "MT",
	"NEBRASKA":             "NE",
	"NEVADA":               "NV",
	"NEW HAMPSHIRE":        "NH",
	"NEW JERSEY":           "NJ",
	"NEW MEXICO":           "NM",
	"NEW YORK":             "NY",
	"NORTH CAROLINA":       "NC",
	"NORTH DAKOTA":         "ND",
	"OHIO":                 "OH",
	"OKLAHOMA":             "OK",
	"OREGON":               "OR",
	"PENNSYLVANIA":         "PA",
	"RHODE ISLAND":         "RI",
	"SOUTH CAROLINA":       "SC",
	"SOUTH DAKOTA":         "SD",
	"TENNESSEE":            "TN",
	"TEXAS":                "TX",
	"UTAH":                 "UT",
	"VERMONT":              "VT",
	"VIRGINIA":             "VA",
	"WASHINGTON":           "WA",
	"WEST VIRGINIA":        "WV",
	"WISCONSIN":            "WI",
	"WYOMING":              "WY",
	"DISTRICT OF COLUMBIA": "DC",
}

package parsers

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"sefazdae/models"
)

// Parse failure classes. Callers can test with errors.Is.
var (
	ErrFileNotFound       = errors.New("spreadsheet file not found")
	ErrNoActiveSheet      = errors.New("workbook has no sheets")
	ErrHeaderNotFound     = errors.New("IE header row not found")
	ErrPeriodNotFound     = errors.New("reference period not found in the title area")
	ErrIEColumnUnresolved = errors.New("IE column could not be resolved")
)

const (
	// IEDigitCount is the number of digits of a Ceará IE. Shorter numeric
	// values are left-padded with zeros Excel may have dropped.
	IEDigitCount = 9

	maxHeaderScanRows = 25
	maxPeriodScanRows = 12
	maxPeriodScanCols = 30

	minPlausibleYear = 1995
	maxPlausibleYear = 2030
)

// Accepted header names for the IE column, compared after normalization.
var ieHeaderSynonyms = []string{
	"INSC.ESTADUAL",
	"INSC. ESTADUAL",
	"i.e.",
	"ie",
	"i..e.",
	"inscrição estadual",
	"inscricao estadual",
	"inscestadual",
	"insc estadual",
}

// Portuguese month abbreviations used in title cells like "jan-26".
var monthAbbrev = map[string]int{
	"jan": 1, "fev": 2, "mar": 3, "abr": 4, "mai": 5, "jun": 6,
	"jul": 7, "ago": 8, "set": 9, "out": 10, "nov": 11, "dez": 12,
}

var (
	monthYearPattern = regexp.MustCompile(`^(jan|fev|mar|abr|mai|jun|jul|ago|set|out|nov|dez)[\s\-/](\d{2})$`)
	dateSplitPattern = regexp.MustCompile(`[/\-.]`)
	stripMarks       = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// normalizeHeader lowercases, strips diacritics and periods, and collapses
// whitespace so "Insc.Estadual" and "INSC ESTADUAL" compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

func matchesIEHeader(cell string) bool {
	n := normalizeHeader(cell)
	if n == "" {
		return false
	}
	for _, syn := range ieHeaderSynonyms {
		if normalizeHeader(syn) == n {
			return true
		}
	}
	return false
}

// ParseSpreadsheet reads the first sheet of an Excel file and extracts the
// header columns, data rows and the reference period from the title area.
// Cell values are read raw so numeric cells keep their stored value and
// date cells surface as Excel serial numbers.
func ParseSpreadsheet(path string) (*models.ExtractedSheet, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoActiveSheet
	}
	sheet := sheets[0]
	log.Printf("Parsing spreadsheet %s (sheet %q)", path, sheet)

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	headerIdx, found := findHeaderRow(rows)
	if !found {
		return nil, fmt.Errorf("%w: scanned first %d rows for a column named INSC.ESTADUAL, I.E., etc.", ErrHeaderNotFound, maxHeaderScanRows)
	}
	log.Printf("Header row found at row %d", headerIdx+1)

	columns, order, ieColumn := mapHeaderRow(rows[headerIdx])
	if ieColumn == "" {
		return nil, ErrIEColumnUnresolved
	}
	log.Printf("Mapped %d columns, IE column %q", len(order), ieColumn)

	month, year, ok := findReferencePeriod(rows)
	if !ok {
		return nil, fmt.Errorf("%w: add a date (e.g. 1/1/2026) or month/year (e.g. jan-26) near the sheet title", ErrPeriodNotFound)
	}
	log.Printf("Reference period from title area: %02d/%d", month, year)

	sheetData := &models.ExtractedSheet{
		Columns:     columns,
		ColumnOrder: order,
		IEColumn:    ieColumn,
		RefMonth:    month,
		RefYear:     year,
	}
	ieIdx := columns[ieColumn]

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		ieValue := cellAt(row, ieIdx)
		if isTerminatorRow(ieValue) {
			log.Printf("Terminator row reached at row %d (IE cell %q), stopping", i+1, ieValue)
			break
		}
		rowMap := make(map[string]string, len(order))
		for _, name := range order {
			if v := cellAt(row, columns[name]); v != "" {
				rowMap[name] = v
			}
		}
		if ie, ok := rowMap[ieColumn]; ok {
			rowMap[ieColumn] = padNumericIE(ie)
		}
		sheetData.Rows = append(sheetData.Rows, rowMap)
	}

	log.Printf("Read %d data rows before the terminator", len(sheetData.Rows))
	return sheetData, nil
}

// findHeaderRow returns the 0-based index of the first row, within the scan
// bound, where any cell matches an IE header synonym.
func findHeaderRow(rows [][]string) (int, bool) {
	limit := len(rows)
	if limit > maxHeaderScanRows {
		limit = maxHeaderScanRows
	}
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			if matchesIEHeader(cell) {
				return i, true
			}
		}
	}
	return 0, false
}

// mapHeaderRow assigns every header cell a unique column name: its trimmed
// text, col_<idx> when blank, and a _<idx> suffix on duplicates. It also
// reports which name matched the IE synonym set.
func mapHeaderRow(header []string) (map[string]int, []string, string) {
	columns := make(map[string]int, len(header))
	order := make([]string, 0, len(header))
	ieColumn := ""
	for idx, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = fmt.Sprintf("col_%d", idx)
		}
		if _, dup := columns[name]; dup {
			name = fmt.Sprintf("%s_%d", name, idx)
		}
		columns[name] = idx
		order = append(order, name)
		if ieColumn == "" && matchesIEHeader(cell) {
			ieColumn = name
		}
	}
	return columns, order, ieColumn
}

// findReferencePeriod scans the title area row-major and returns the first
// cell that parses as a month/year pair. There is deliberately no
// disambiguation beyond first-match-wins.
func findReferencePeriod(rows [][]string) (int, int, bool) {
	rowLimit := len(rows)
	if rowLimit > maxPeriodScanRows {
		rowLimit = maxPeriodScanRows
	}
	for i := 0; i < rowLimit; i++ {
		colLimit := len(rows[i])
		if colLimit > maxPeriodScanCols {
			colLimit = maxPeriodScanCols
		}
		for j := 0; j < colLimit; j++ {
			if month, year, ok := parsePeriodCell(rows[i][j]); ok {
				return month, year, true
			}
		}
	}
	return 0, 0, false
}

// parsePeriodCell tries, in order: an Excel date serial (covers date-typed
// cells, whose raw value is the serial), a Portuguese month abbreviation
// with a two-digit year, and a delimiter-separated numeric date.
func parsePeriodCell(cell string) (int, int, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, 0, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial > 2000 && serial < 100000 {
			d := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(serial))
			if plausiblePeriod(int(d.Month()), d.Year()) {
				return int(d.Month()), d.Year(), true
			}
		}
	}

	if m := monthYearPattern.FindStringSubmatch(strings.ToLower(s)); m != nil {
		month := monthAbbrev[m[1]]
		yy, _ := strconv.Atoi(m[2])
		year := 1900 + yy
		if yy < 50 {
			year = 2000 + yy
		}
		if plausiblePeriod(month, year) {
			return month, year, true
		}
	}

	var nums []int
	for _, part := range dateSplitPattern.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			nums = append(nums, n)
		}
	}
	if len(nums) >= 2 {
		month, year := nums[0], nums[1]
		if len(nums) >= 3 {
			// day/month/year: the middle two tokens carry the period
			month, year = nums[1], nums[2]
		}
		if plausiblePeriod(month, year) {
			return month, year, true
		}
	}

	return 0, 0, false
}

func plausiblePeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year >= minPlausibleYear && year <= maxPlausibleYear
}

// isTerminatorRow reports whether the IE cell marks the totals/footer area.
func isTerminatorRow(ieValue string) bool {
	v := strings.ToUpper(strings.TrimSpace(ieValue))
	if v == "" {
		return false
	}
	return strings.HasPrefix(v, "TOTAL") || v == "CEARA"
}

// padNumericIE restores leading zeros on purely numeric IEs shorter than
// nine digits. Excel stores them as numbers and drops the zeros.
func padNumericIE(ie string) string {
	if ie == "" || len(ie) >= IEDigitCount {
		return ie
	}
	for _, r := range ie {
		if r < '0' || r > '9' {
			return ie
		}
	}
	return strings.Repeat("0", IEDigitCount-len(ie)) + ie
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

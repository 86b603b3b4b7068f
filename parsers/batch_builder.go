package parsers

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"sefazdae/models"
)

// BuildWorkItems converts an extracted sheet into the ordered batch input
// for the DAE orchestrator. The amount comes from the TOTAL column, or from
// NORMAL when the sheet has no TOTAL. Rows without an IE are dropped; an
// unparseable amount becomes a nil Amount, not an error.
func BuildWorkItems(sheet *models.ExtractedSheet) ([]models.WorkItem, error) {
	if sheet.IEColumn == "" {
		return nil, ErrIEColumnUnresolved
	}
	if sheet.RefMonth == 0 || sheet.RefYear == 0 {
		return nil, fmt.Errorf("reference period missing from sheet extraction")
	}

	amountColumn := findColumnByName(sheet, "TOTAL")
	if amountColumn == "" {
		amountColumn = findColumnByName(sheet, "NORMAL")
	}

	items := make([]models.WorkItem, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		ie := strings.TrimSpace(row[sheet.IEColumn])
		if ie == "" {
			continue
		}
		item := models.WorkItem{
			IE:       ie,
			IEDigits: IEDigitsOnly(ie),
			RefMonth: sheet.RefMonth,
			RefYear:  sheet.RefYear,
		}
		if amountColumn != "" {
			item.Amount = parseAmount(row[amountColumn])
		}
		items = append(items, item)
	}

	log.Printf("Built %d work items (period %02d/%d)", len(items), sheet.RefMonth, sheet.RefYear)
	return items, nil
}

// IEDigitsOnly strips every non-digit character and normalizes the result
// to exactly nine digits: shorter values are left-padded with zeros, longer
// ones are truncated to the first nine. The truncation mirrors the
// spreadsheet convention and is deliberately not a validation.
func IEDigitsOnly(ie string) string {
	if ie == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(ie) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > IEDigitCount {
		return digits[:IEDigitCount]
	}
	if len(digits) < IEDigitCount {
		return strings.Repeat("0", IEDigitCount-len(digits)) + digits
	}
	return digits
}

// findColumnByName returns the column key whose normalized header equals
// the given name, or "" when the sheet has no such column.
func findColumnByName(sheet *models.ExtractedSheet, name string) string {
	want := normalizeHeader(name)
	for _, key := range sheet.ColumnOrder {
		if normalizeHeader(key) == want {
			return key
		}
	}
	return ""
}

// parseAmount reads a monetary cell. A comma is treated as the decimal
// separator; anything unparseable yields nil.
func parseAmount(value string) *float64 {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

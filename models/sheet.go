package models

// ExtractedSheet is the intermediate result of parsing a branch spreadsheet.
// Rows map header names to cell values; blank cells are simply absent from
// the map. The reference period comes from the sheet title area and is
// shared by every row.
type ExtractedSheet struct {
	Rows        []map[string]string `json:"rows"`
	Columns     map[string]int      `json:"columns"`      // header name -> 0-based column index
	ColumnOrder []string            `json:"column_order"` // header names in source order
	IEColumn    string              `json:"ie_column"`    // header name resolved as the IE column
	RefMonth    int                 `json:"ref_month"`
	RefYear     int                 `json:"ref_year"`
}

// IEs returns the IE column value of every row that has one, in order.
func (s *ExtractedSheet) IEs() []string {
	ies := make([]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		if ie := row[s.IEColumn]; ie != "" {
			ies = append(ies, ie)
		}
	}
	return ies
}

package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sefazdae/models"
)

func sheetWith(rows []map[string]string) *models.ExtractedSheet {
	return &models.ExtractedSheet{
		Rows:        rows,
		Columns:     map[string]int{"INSC.ESTADUAL": 0, "NORMAL": 1, "TOTAL": 2},
		ColumnOrder: []string{"INSC.ESTADUAL", "NORMAL", "TOTAL"},
		IEColumn:    "INSC.ESTADUAL",
		RefMonth:    1,
		RefYear:     2026,
	}
}

func TestBuildWorkItems(t *testing.T) {
	sheet := sheetWith([]map[string]string{
		{"INSC.ESTADUAL": "06.123.456-7", "TOTAL": "1000"},
		{"INSC.ESTADUAL": "098765432", "TOTAL": "1277,39"},
		{"INSC.ESTADUAL": "111111111"},
		{"NORMAL": "42"}, // no IE, dropped
		{"INSC.ESTADUAL": "222222222", "TOTAL": "n/a"},
	})

	items, err := BuildWorkItems(sheet)
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, "06.123.456-7", items[0].IE)
	assert.Equal(t, "061234567", items[0].IEDigits)
	require.NotNil(t, items[0].Amount)
	assert.Equal(t, 1000.0, *items[0].Amount)
	assert.Equal(t, 1, items[0].RefMonth)
	assert.Equal(t, 2026, items[0].RefYear)

	// comma decimal separator
	require.NotNil(t, items[1].Amount)
	assert.Equal(t, 1277.39, *items[1].Amount)

	// blank and unparseable amounts are nil, not errors
	assert.Nil(t, items[2].Amount)
	assert.Nil(t, items[3].Amount)
	assert.True(t, items[2].Skippable())
}

func TestBuildWorkItemsRequiresPeriod(t *testing.T) {
	sheet := sheetWith(nil)
	sheet.RefMonth = 0
	_, err := BuildWorkItems(sheet)
	assert.Error(t, err)
}

func TestBuildWorkItemsRequiresIEColumn(t *testing.T) {
	sheet := sheetWith(nil)
	sheet.IEColumn = ""
	_, err := BuildWorkItems(sheet)
	assert.ErrorIs(t, err, ErrIEColumnUnresolved)
}

func TestBuildWorkItemsNormalColumnFallback(t *testing.T) {
	sheet := sheetWith([]map[string]string{
		{"INSC.ESTADUAL": "123456789", "NORMAL": "350,50"},
	})
	sheet.Columns = map[string]int{"INSC.ESTADUAL": 0, "NORMAL": 1}
	sheet.ColumnOrder = []string{"INSC.ESTADUAL", "NORMAL"}

	items, err := BuildWorkItems(sheet)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Amount)
	assert.Equal(t, 350.50, *items[0].Amount)
}

func TestBuildWorkItemsTotalColumnWins(t *testing.T) {
	sheet := sheetWith([]map[string]string{
		{"INSC.ESTADUAL": "123456789", "NORMAL": "100", "TOTAL": "250"},
	})

	items, err := BuildWorkItems(sheet)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Amount)
	assert.Equal(t, 250.0, *items[0].Amount)
}

func TestBuildWorkItemsWithoutTotalColumn(t *testing.T) {
	sheet := sheetWith([]map[string]string{
		{"INSC.ESTADUAL": "123456789", "TOTAL": "500"},
	})
	sheet.Columns = map[string]int{"INSC.ESTADUAL": 0}
	sheet.ColumnOrder = []string{"INSC.ESTADUAL"}

	items, err := BuildWorkItems(sheet)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Amount)
}

func TestIEDigitsOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"06.123.456-7", "061234567"},
		{"123456789", "123456789"},
		{"1234567", "001234567"},
		{"12345678901", "123456789"}, // longer than nine: first nine kept
		{"ISENTO", "000000000"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IEDigitsOnly(tt.in), "input %q", tt.in)
	}
}

func TestParseAmount(t *testing.T) {
	v := parseAmount("1277,39")
	require.NotNil(t, v)
	assert.Equal(t, 1277.39, *v)

	v = parseAmount("1277.395")
	require.NotNil(t, v)
	assert.Equal(t, 1277.395, *v)

	assert.Nil(t, parseAmount(""))
	assert.Nil(t, parseAmount("null"))
	assert.Nil(t, parseAmount("abc"))
}

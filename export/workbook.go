package export

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary   = "Summary"
	sheetSpendings = "Spendings"
	sheetMembers   = "Members"
	sheetLedgers   = "Ledgers"

	// builtin "#,##0.00"
	numFmtCurrency = 4
)

type styles struct {
	title      int
	header     int
	tileName   int
	tileNum    int
	tileMoney  int
	money      int
	band       int
	bandMoney  int
	total      int
	totalMoney int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	defs := []struct {
		id    *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E78"}},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.tileName, &excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "1F4E78"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		}},
		{&s.tileNum, &excelize.Style{
			Font: &excelize.Font{Bold: true, Size: 14},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		}},
		{&s.tileMoney, &excelize.Style{
			Font:   &excelize.Font{Bold: true, Size: 14},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
			NumFmt: numFmtCurrency,
		}},
		{&s.money, &excelize.Style{NumFmt: numFmtCurrency}},
		{&s.band, &excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F2F2F2"}},
		}},
		{&s.bandMoney, &excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F2F2F2"}},
			NumFmt: numFmtCurrency,
		}},
		{&s.total, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Border: []excelize.Border{{Type: "top", Color: "000000", Style: 2}},
		}},
		{&s.totalMoney, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Border: []excelize.Border{{Type: "top", Color: "000000", Style: 2}},
			NumFmt: numFmtCurrency,
		}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, fmt.Errorf("creating style: %w", err)
		}
		*d.id = id
	}
	return s, nil
}

// Workbook renders doc as an xlsx file: a Summary sheet, the Spendings data
// sheet and, for project exports, Members and Ledgers sheets.
func Workbook(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("naming summary sheet: %w", err)
	}

	summary := Summarize(doc.Rows)
	if err := writeSummary(f, st, doc, summary); err != nil {
		return nil, fmt.Errorf("writing summary sheet: %w", err)
	}
	if err := writeSpendings(f, st, doc.Rows, summary); err != nil {
		return nil, fmt.Errorf("writing spendings sheet: %w", err)
	}
	if doc.project() {
		if err := writeMembers(f, st, doc.Members); err != nil {
			return nil, fmt.Errorf("writing members sheet: %w", err)
		}
		if err := writeLedgers(f, st, doc.Ledgers); err != nil {
			return nil, fmt.Errorf("writing ledgers sheet: %w", err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeSummary(f *excelize.File, st styles, doc Document, s Summary) error {
	sh := sheetSummary
	if err := f.SetCellValue(sh, "A1", doc.Title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", "A1", st.title); err != nil {
		return err
	}

	meta := [][]any{
		{"Generated At", doc.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")},
		{"Period", periodLabel(doc.Period)},
		{"Filters", filterLabel(doc.Filters)},
	}
	for i, m := range meta {
		if err := f.SetSheetRow(sh, cell(1, 2+i), &m); err != nil {
			return err
		}
	}

	// KPI tiles: label on row 6, value on row 7, one tile per column.
	approved, pending := decimalOf(s.ByStatus, "approved"), decimalOf(s.ByStatus, "pending")
	tiles := []struct {
		label string
		value any
		money bool
	}{
		{"Total Amount", s.Total.InexactFloat64(), true},
		{"Records", s.Count, false},
		{"Approved", approved.InexactFloat64(), true},
		{"Pending", pending.InexactFloat64(), true},
	}
	for i, tile := range tiles {
		col := 1 + i
		if err := f.SetCellValue(sh, cell(col, 6), tile.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sh, cell(col, 7), tile.value); err != nil {
			return err
		}
		valueStyle := st.tileNum
		if tile.money {
			valueStyle = st.tileMoney
		}
		if err := f.SetCellStyle(sh, cell(col, 6), cell(col, 6), st.tileName); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh, cell(col, 7), cell(col, 7), valueStyle); err != nil {
			return err
		}
	}

	row := 9
	for _, table := range []struct {
		title   string
		buckets []Bucket
	}{
		{"By Status", s.ByStatus},
		{"By Category", s.ByCategory},
		{"By Ledger", s.ByLedger},
		{"By Member", s.ByMember},
	} {
		next, err := writeBreakdown(f, st, row, table.title, table.buckets)
		if err != nil {
			return err
		}
		row = next + 1
	}

	return f.SetColWidth(sh, "A", "D", 22)
}

func decimalOf(buckets []Bucket, label string) decimal.Decimal {
	for _, b := range buckets {
		if b.Label == label {
			return b.Amount
		}
	}
	return decimal.Zero
}

// writeBreakdown writes a titled Label/Count/Amount table at row and returns
// the first free row after it.
func writeBreakdown(f *excelize.File, st styles, row int, title string, buckets []Bucket) (int, error) {
	sh := sheetSummary
	if err := f.SetCellValue(sh, cell(1, row), title); err != nil {
		return 0, err
	}
	row++
	if err := f.SetSheetRow(sh, cell(1, row), &[]any{"Label", "Count", "Amount"}); err != nil {
		return 0, err
	}
	if err := f.SetCellStyle(sh, cell(1, row), cell(3, row), st.header); err != nil {
		return 0, err
	}
	row++
	for _, b := range buckets {
		if err := f.SetSheetRow(sh, cell(1, row), &[]any{b.Label, b.Count, b.Amount.InexactFloat64()}); err != nil {
			return 0, err
		}
		if err := f.SetCellStyle(sh, cell(3, row), cell(3, row), st.money); err != nil {
			return 0, err
		}
		row++
	}
	return row, nil
}

func writeSpendings(f *excelize.File, st styles, rows []Row, s Summary) error {
	sh := sheetSpendings
	if _, err := f.NewSheet(sh); err != nil {
		return err
	}

	last := len(header)
	if err := f.SetSheetRow(sh, "A1", stringRow(header)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", cell(last, 1), st.header); err != nil {
		return err
	}

	for i, r := range rows {
		n := i + 2
		values := make([]any, 0, last)
		for col, c := range r.cells() {
			if col+1 == amountColumn {
				values = append(values, r.Amount.InexactFloat64())
				continue
			}
			values = append(values, c)
		}
		if err := f.SetSheetRow(sh, cell(1, n), &values); err != nil {
			return err
		}

		plain, money := 0, st.money
		if i%2 == 1 {
			plain, money = st.band, st.bandMoney
		}
		if plain != 0 {
			if err := f.SetCellStyle(sh, cell(1, n), cell(last, n), plain); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(sh, cell(amountColumn, n), cell(amountColumn, n), money); err != nil {
			return err
		}
	}

	totalRow := len(rows) + 2
	if err := f.SetCellValue(sh, cell(1, totalRow), "TOTAL"); err != nil {
		return err
	}
	if err := f.SetCellValue(sh, cell(amountColumn, totalRow), s.Total.InexactFloat64()); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, cell(1, totalRow), cell(last, totalRow), st.total); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, cell(amountColumn, totalRow), cell(amountColumn, totalRow), st.totalMoney); err != nil {
		return err
	}

	if err := f.SetPanes(sh, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	// the filter range stops above the TOTAL row
	filterEnd := max(len(rows)+1, 2)
	if err := f.AutoFilter(sh, "A1:"+cell(last, filterEnd), nil); err != nil {
		return err
	}

	lastCol, _ := excelize.ColumnNumberToName(last)
	if err := f.SetColWidth(sh, "A", lastCol, 16); err != nil {
		return err
	}
	return f.SetColWidth(sh, "D", "D", 36)
}

func writeMembers(f *excelize.File, st styles, members []Member) error {
	sh := sheetMembers
	if _, err := f.NewSheet(sh); err != nil {
		return err
	}
	if err := f.SetSheetRow(sh, "A1", &[]any{"Member", "Role", "Spendings", "Approved Amount"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", "D1", st.header); err != nil {
		return err
	}
	for i, m := range members {
		n := i + 2
		if err := f.SetSheetRow(sh, cell(1, n), &[]any{m.Name, m.Role, m.Count, m.Approved.InexactFloat64()}); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh, cell(4, n), cell(4, n), st.money); err != nil {
			return err
		}
	}
	return f.SetColWidth(sh, "A", "D", 20)
}

func writeLedgers(f *excelize.File, st styles, ledgers []Ledger) error {
	sh := sheetLedgers
	if _, err := f.NewSheet(sh); err != nil {
		return err
	}
	if err := f.SetSheetRow(sh, "A1", &[]any{"Ledger", "Sub-ledgers"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", "B1", st.header); err != nil {
		return err
	}
	for i, l := range ledgers {
		if err := f.SetSheetRow(sh, cell(1, i+2), &[]any{l.Name, strings.Join(l.SubLedgers, ", ")}); err != nil {
			return err
		}
	}
	return f.SetColWidth(sh, "A", "B", 30)
}

func stringRow(cells []string) *[]any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return &row
}

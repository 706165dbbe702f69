package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// preferred sheet names, checked before falling back to the first sheet
var transactionSheetNames = []string{
	"transactions", "movimentos", "extrato", "statement", "data", "sheet1",
}

func parseExcel(r io.Reader, filename string, opts Options) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable XLSX file", ErrUnsupportedFormat)
	}
	defer f.Close()

	sheet := pickSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnsupportedFormat)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}

	headerIdx := findExcelHeader(rows)
	if headerIdx < 0 {
		return nil, &MissingColumnError{Column: "date"}
	}
	cols := mapExcelColumns(rows[headerIdx])
	if cols.date < 0 {
		return nil, &MissingColumnError{Column: "date"}
	}
	if cols.desc < 0 {
		return nil, &MissingColumnError{Column: "description"}
	}
	if cols.amount < 0 && cols.debit < 0 && cols.credit < 0 {
		return nil, &MissingColumnError{Column: "amount"}
	}

	result := &Result{Records: make([]RawRecord, 0, len(rows))}
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		get := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		dateStr := get(cols.date)
		desc := get(cols.desc)
		amountStr := get(cols.amount)
		debitStr := get(cols.debit)
		creditStr := get(cols.credit)
		if dateStr == "" && desc == "" && amountStr == "" && debitStr == "" && creditStr == "" {
			continue
		}

		result.TotalRows++
		rec, rowErr := buildRecord(dateStr, desc, amountStr, debitStr, creditStr, line, filename, opts)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, rowErr)
			continue
		}
		result.Records = append(result.Records, *rec)
		result.ParsedRows++
	}
	return result, nil
}

func pickSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range transactionSheetNames {
		for _, s := range sheets {
			if strings.EqualFold(s, preferred) {
				return s
			}
		}
	}
	return sheets[0]
}

// findExcelHeader returns the index of the first row that looks like a
// header (contains a date-ish and a description-ish cell), or -1.
func findExcelHeader(rows [][]string) int {
	for i, row := range rows {
		if i > 20 {
			break
		}
		cols := mapExcelColumns(row)
		if cols.date >= 0 && cols.desc >= 0 {
			return i
		}
	}
	return -1
}

type excelColumns struct {
	date, desc, amount, debit, credit int
}

func mapExcelColumns(headers []string) excelColumns {
	cols := excelColumns{date: -1, desc: -1, amount: -1, debit: -1, credit: -1}
	contains := func(h string, kws ...string) bool {
		for _, kw := range kws {
			if strings.Contains(h, kw) {
				return true
			}
		}
		return false
	}
	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		switch {
		case cols.date < 0 && contains(h, "date", "data", "fecha"):
			cols.date = i
		case cols.desc < 0 && contains(h, "descri", "merchant", "payee", "memo", "details"):
			cols.desc = i
		case cols.debit < 0 && contains(h, "debit", "débito", "cargo"):
			cols.debit = i
		case cols.credit < 0 && contains(h, "credit", "crédito", "abono"):
			cols.credit = i
		case cols.amount < 0 && (h == "amount" || h == "valor" || h == "value" || h == "importe"):
			cols.amount = i
		}
	}
	return cols
}

// Package parser turns bank-export files (CSV/TSV via gocsv, XLSX via
// excelize) into ordered raw transaction records. Row-level failures are
// collected, not fatal: one mangled line never sinks the file.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/mpalmeida/spendsight/internal/domain/ingest/sniffer"
)

// ErrUnsupportedFormat is returned for file types the parser cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// MalformedRowError reports a row that could not be converted. Line is the
// 1-based line number in the source file.
type MalformedRowError struct {
	Line   int
	Column string
	Reason string
	Raw    string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Reason)
}

// MissingColumnError reports an essential column absent from the header row.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q not found", e.Column)
}

// RawRecord is one parsed statement line, before normalization.
type RawRecord struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	// AmountCents is signed: negative for money out, positive for money in.
	AmountCents  int64
	CurrencyHint string
	Line         int
	SourceFile   string
}

// Result carries the parsed records plus per-row failures.
type Result struct {
	Records    []RawRecord
	RowErrors  []*MalformedRowError
	TotalRows  int
	ParsedRows int
}

// Options tune parsing for a particular file's dialect.
type Options struct {
	EuropeanAmounts bool
	DayFirstDates   bool
	// Shape overrides sniffing when the caller already detected (or the
	// user confirmed) the file layout.
	Shape *sniffer.Shape
}

// csvRow is the gocsv-unmarshaled view of a statement line. Tags cover the
// header spellings seen across exports; gocsv matches by header name.
type csvRow struct {
	Date    string `csv:"date"`
	DataMov string `csv:"data mov."`
	Fecha   string `csv:"fecha"`
	DateAlt string `csv:"transaction date"`

	Description string `csv:"description"`
	Descricao   string `csv:"descrição"`
	Merchant    string `csv:"merchant"`
	Payee       string `csv:"payee"`
	Memo        string `csv:"memo"`
	Details     string `csv:"details"`

	Amount string `csv:"amount"`
	Valor  string `csv:"valor"`
	Value  string `csv:"value"`

	Debit  string `csv:"debit"`
	Debito string `csv:"débito"`

	Credit  string `csv:"credit"`
	Credito string `csv:"crédito"`
}

// Parse reads a statement file, dispatching on the file extension.
// CSV/TSV/TXT go through the delimiter sniffer; XLSX through excelize.
func Parse(r io.Reader, filename string, opts Options) (*Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt":
		return parseDelimited(r, filename, opts)
	case ".xlsx":
		return parseExcel(r, filename, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func parseDelimited(r io.Reader, filename string, opts Options) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}

	shape := opts.Shape
	if shape == nil {
		shape, err = sniffer.Detect(data)
		if err != nil {
			return nil, fmt.Errorf("sniffing %s: %w", filename, err)
		}
		opts.EuropeanAmounts = opts.EuropeanAmounts || shape.Dialect.EuropeanAmounts
		opts.DayFirstDates = opts.DayFirstDates || shape.Dialect.DayFirstDates
	}

	if shape.Columns.Date < 0 {
		return nil, &MissingColumnError{Column: "date"}
	}
	if shape.Columns.Description < 0 {
		return nil, &MissingColumnError{Column: "description"}
	}
	if shape.Columns.Amount < 0 && !shape.Columns.DoubleEntry() {
		return nil, &MissingColumnError{Column: "amount"}
	}

	body := lowercaseHeader(dropLeadingLines(data, shape.HeaderRow))

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		cr := csv.NewReader(in)
		cr.Comma = shape.Delimiter
		cr.LazyQuotes = true
		cr.TrimLeadingSpace = true
		cr.FieldsPerRecord = -1
		return cr
	})

	var rows []csvRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	result := &Result{Records: make([]RawRecord, 0, len(rows))}
	for i, row := range rows {
		line := shape.HeaderRow + i + 2 // 1-based, after the header
		result.TotalRows++

		rec, rowErr := convertRow(row, line, filename, opts)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, rowErr)
			continue
		}
		if rec == nil {
			continue // blank line
		}
		result.Records = append(result.Records, *rec)
		result.ParsedRows++
	}
	return result, nil
}

func convertRow(row csvRow, line int, filename string, opts Options) (*RawRecord, *MalformedRowError) {
	dateStr := coalesce(row.Date, row.DataMov, row.Fecha, row.DateAlt)
	desc := coalesce(row.Description, row.Descricao, row.Merchant, row.Payee, row.Memo, row.Details)
	amountStr := coalesce(row.Amount, row.Valor, row.Value)
	debitStr := coalesce(row.Debit, row.Debito)
	creditStr := coalesce(row.Credit, row.Credito)

	if dateStr == "" && desc == "" && amountStr == "" && debitStr == "" && creditStr == "" {
		return nil, nil
	}
	return buildRecord(dateStr, desc, amountStr, debitStr, creditStr, line, filename, opts)
}

func buildRecord(dateStr, desc, amountStr, debitStr, creditStr string, line int, filename string, opts Options) (*RawRecord, *MalformedRowError) {
	date, err := parseDate(dateStr, opts.DayFirstDates)
	if err != nil {
		return nil, &MalformedRowError{Line: line, Column: "date", Reason: err.Error(), Raw: dateStr}
	}
	if desc == "" {
		return nil, &MalformedRowError{Line: line, Column: "description", Reason: "missing description"}
	}

	var cents int64
	var currency string
	if amountStr != "" {
		cents, currency, err = parseAmount(amountStr, opts.EuropeanAmounts)
		if err != nil {
			return nil, &MalformedRowError{Line: line, Column: "amount", Reason: err.Error(), Raw: amountStr}
		}
	} else if debitStr != "" || creditStr != "" {
		cents, currency = parseDebitCredit(debitStr, creditStr, opts.EuropeanAmounts)
	} else {
		return nil, &MalformedRowError{Line: line, Column: "amount", Reason: "no amount found"}
	}

	return &RawRecord{
		ID:           uuid.New(),
		Date:         date,
		Description:  collapseSpaces(desc),
		AmountCents:  cents,
		CurrencyHint: currency,
		Line:         line,
		SourceFile:   filepath.Base(filename),
	}, nil
}

var dayFirstFormats = []string{
	"02/01/2006", "02-01-2006", "02.01.2006", "02/01/2006 15:04",
}

var monthFirstFormats = []string{
	"01/02/2006", "01-02-2006", "01/02/2006 15:04",
}

var neutralFormats = []string{
	"2006-01-02", "2006/01/02", "2006-01-02T15:04:05Z", "2006-01-02 15:04:05",
}

func parseDate(s string, dayFirst bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}

	formats := append([]string{}, neutralFormats...)
	if dayFirst {
		formats = append(formats, dayFirstFormats...)
		formats = append(formats, monthFirstFormats...)
	} else {
		formats = append(formats, monthFirstFormats...)
		formats = append(formats, dayFirstFormats...)
	}

	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", s)
}

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"R$", "BRL"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"$", "USD"},
}

func parseAmount(s string, european bool) (int64, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", errors.New("empty amount")
	}

	// ordered so "R$" wins over its "$" suffix
	currency := ""
	for _, sc := range currencySymbols {
		if strings.Contains(s, sc.symbol) {
			currency = sc.code
			s = strings.ReplaceAll(s, sc.symbol, "")
			break
		}
	}
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	if european {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, currency, fmt.Errorf("invalid number: %s", s)
	}
	if negative {
		f = -f
	}

	// round half away from zero to avoid float truncation (e.g. 47.32*100)
	cents := int64(f*100 + copysignHalf(f))
	return cents, currency, nil
}

func copysignHalf(f float64) float64 {
	if f < 0 {
		return -0.5
	}
	return 0.5
}

// parseDebitCredit maps double-entry columns onto a single signed amount:
// debit negative, credit positive.
func parseDebitCredit(debitStr, creditStr string, european bool) (int64, string) {
	if debitStr != "" {
		if cents, cur, err := parseAmount(debitStr, european); err == nil && cents != 0 {
			if cents > 0 {
				cents = -cents
			}
			return cents, cur
		}
	}
	if creditStr != "" {
		if cents, cur, err := parseAmount(creditStr, european); err == nil && cents != 0 {
			if cents < 0 {
				cents = -cents
			}
			return cents, cur
		}
	}
	return 0, ""
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// lowercaseHeader lowercases the first line so gocsv tag matching is
// case-insensitive across "Date"/"DATE"/"date" exports.
func lowercaseHeader(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return bytes.ToLower(data)
	}
	out := make([]byte, 0, len(data))
	out = append(out, bytes.ToLower(data[:idx])...)
	out = append(out, data[idx:]...)
	return out
}

// dropLeadingLines returns data with the first n lines removed, so gocsv
// sees the header row first.
func dropLeadingLines(data []byte, n int) []byte {
	for ; n > 0; n-- {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return nil
		}
		data = data[idx+1:]
	}
	return data
}

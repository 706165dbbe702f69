// Package sniffer detects the shape of bank-export CSV/TSV files: delimiter,
// header row, column roles and regional amount/date dialect. Detection is
// best-effort; ambiguous column layouts are reported via NeedsConfirmation
// rather than guessed silently.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeaderFound    = errors.New("could not locate a header row")
	ErrInvalidDelimiter = errors.New("could not detect a field delimiter")
)

// headerKeywords are column names banks commonly emit, across locales.
var headerKeywords = []string{
	"date", "description", "amount", "debit", "credit", "balance", "merchant",
	"payee", "memo", "details",
	"data mov", "descrição", "descricao", "débito", "crédito", "saldo", "valor",
	"fecha", "descripción", "importe", "cargo", "abono",
}

// Shape is the detected layout of a delimited statement file.
type Shape struct {
	Delimiter   rune
	HeaderRow   int // 0-based line index of the header row
	Headers     []string
	Fingerprint string // stable hash of normalized headers, for bank recognition
	SampleRows  [][]string
	Columns     ColumnMap
	Dialect     Dialect
}

// ColumnMap holds detected column indices; -1 means not found.
type ColumnMap struct {
	Date        int
	Description int
	Amount      int // single signed amount column
	Debit       int
	Credit      int
	// NeedsConfirmation is set when an essential column could not be
	// identified, or when competing candidates make the mapping ambiguous.
	NeedsConfirmation bool
	Ambiguities       []string
}

// DoubleEntry reports whether the file uses separate debit/credit columns.
func (c ColumnMap) DoubleEntry() bool {
	return c.Debit >= 0 && c.Credit >= 0
}

// Dialect is the inferred regional formatting of amounts and dates.
type Dialect struct {
	EuropeanAmounts bool   // true when comma is the decimal separator
	DayFirstDates   bool   // DD/MM rather than MM/DD
	CurrencyHint    string // ISO code when a symbol was spotted, else ""
	Confidence      float64
}

// Detect analyzes raw file bytes and returns the detected shape.
func Detect(data []byte) (*Shape, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")
	delimiter, headerRow, err := findHeaderRow(lines)
	if err != nil {
		return nil, err
	}

	headers, err := splitLine(cleanLine(lines[headerRow], headerRow == 0), delimiter)
	if err != nil {
		return nil, err
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	samples := sampleRows(data, delimiter, headerRow+1, 5)
	columns := mapColumns(headers)
	dialect := probeDialect(samples, columns)

	return &Shape{
		Delimiter:   delimiter,
		HeaderRow:   headerRow,
		Headers:     headers,
		Fingerprint: fingerprint(headers),
		SampleRows:  samples,
		Columns:     columns,
		Dialect:     dialect,
	}, nil
}

// findHeaderRow scans the first lines for the row most likely to be the
// header. Statement exports often carry account metadata above the real
// header, so a line with known column keywords beats an earlier line with
// more columns.
func findHeaderRow(lines []string) (rune, int, error) {
	bestIdx, bestScore := -1, 0
	var bestDelim rune

	fallbackIdx, fallbackCols := -1, 0
	var fallbackDelim rune

	for i, line := range lines {
		if i > 20 {
			break
		}
		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delim, cols := detectDelimiter(line)
		if cols < 1 {
			continue
		}

		lower := strings.ToLower(line)
		keywords := 0
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				keywords++
			}
		}

		if keywords > 0 {
			score := cols*10 + keywords
			if score > bestScore {
				bestScore = score
				bestIdx = i
				bestDelim = delim
			}
		} else if cols > fallbackCols {
			fallbackCols = cols
			fallbackIdx = i
			fallbackDelim = delim
		}
	}

	if bestIdx >= 0 {
		return bestDelim, bestIdx, nil
	}
	if fallbackCols >= 2 {
		return fallbackDelim, fallbackIdx, nil
	}
	return 0, 0, ErrNoHeaderFound
}

func detectDelimiter(line string) (rune, int) {
	var best rune
	bestCount := 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			bestCount = n
			best = d
		}
	}
	return best, bestCount
}

func cleanLine(line string, first bool) string {
	line = strings.TrimRight(line, "\r")
	if first {
		line = strings.TrimPrefix(line, "\ufeff")
	}
	return strings.TrimSpace(line)
}

func splitLine(line string, delimiter rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delimiter
	r.LazyQuotes = true
	return r.Read()
}

// mapColumns matches headers to roles by keyword. Essential roles (date,
// description, some amount) missing or contested set NeedsConfirmation.
func mapColumns(headers []string) ColumnMap {
	cm := ColumnMap{Date: -1, Description: -1, Amount: -1, Debit: -1, Credit: -1}

	match := func(h string, kws ...string) bool {
		for _, kw := range kws {
			if strings.Contains(h, kw) {
				return true
			}
		}
		return false
	}

	var amountCandidates []int
	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		switch {
		case cm.Date < 0 && (match(h, "date", "data mov", "fecha") || h == "data"):
			cm.Date = i
		case cm.Description < 0 && match(h, "descri", "merchant", "payee", "memo", "details"):
			cm.Description = i
		case match(h, "debit", "débito", "debito", "cargo"):
			if cm.Debit < 0 {
				cm.Debit = i
			}
		case match(h, "credit", "crédito", "credito", "abono"):
			if cm.Credit < 0 {
				cm.Credit = i
			}
		case h == "amount" || h == "valor" || h == "importe" || h == "value" || h == "montant":
			amountCandidates = append(amountCandidates, i)
		}
	}

	switch len(amountCandidates) {
	case 0:
	case 1:
		cm.Amount = amountCandidates[0]
	default:
		cm.Amount = amountCandidates[0]
		cm.NeedsConfirmation = true
		cm.Ambiguities = append(cm.Ambiguities, "multiple amount columns")
	}

	if cm.Date < 0 {
		cm.NeedsConfirmation = true
		cm.Ambiguities = append(cm.Ambiguities, "no date column")
	}
	if cm.Description < 0 {
		cm.NeedsConfirmation = true
		cm.Ambiguities = append(cm.Ambiguities, "no description column")
	}
	if cm.Amount < 0 && !cm.DoubleEntry() {
		cm.NeedsConfirmation = true
		cm.Ambiguities = append(cm.Ambiguities, "no amount column")
	}
	return cm
}

// probeDialect inspects sample rows for decimal-separator and date-order
// evidence.
func probeDialect(samples [][]string, cm ColumnMap) Dialect {
	d := Dialect{Confidence: 0.5}

	euHints, usHints := 0, 0
	amountIdx := cm.Amount
	if amountIdx < 0 {
		amountIdx = cm.Debit
	}

	for _, row := range samples {
		if amountIdx >= 0 && amountIdx < len(row) && row[amountIdx] != "" {
			switch amountFormatHint(row[amountIdx]) {
			case 1:
				euHints++
			case -1:
				usHints++
			}
		}
		if cm.Date >= 0 && cm.Date < len(row) && dayFirst(row[cm.Date]) {
			d.DayFirstDates = true
		}
		for _, cell := range row {
			switch {
			case strings.Contains(cell, "€") || strings.Contains(cell, "EUR"):
				d.CurrencyHint = "EUR"
				euHints++
			case strings.Contains(cell, "R$"):
				d.CurrencyHint = "BRL"
				euHints++ // Brazilian statements use comma decimals
			case strings.Contains(cell, "£"):
				d.CurrencyHint = "GBP"
				usHints++
			case strings.Contains(cell, "$"):
				if d.CurrencyHint == "" {
					d.CurrencyHint = "USD"
				}
				usHints++
			}
		}
	}

	d.EuropeanAmounts = euHints > usHints
	if total := euHints + usHints; total > 0 {
		winning := euHints
		if usHints > winning {
			winning = usHints
		}
		d.Confidence = float64(winning) / float64(total)
	}
	if d.EuropeanAmounts && !d.DayFirstDates {
		// Comma-decimal locales overwhelmingly write the day first.
		d.DayFirstDates = true
	}
	return d
}

// amountFormatHint returns 1 for European (1.234,56), -1 for US (1,234.56),
// 0 when the value is ambiguous.
func amountFormatHint(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1
		}
		return -1
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
	}
	return 0
}

// dayFirst reports whether a date string is provably day-first (first
// component exceeds 12).
func dayFirst(val string) bool {
	parts := strings.FieldsFunc(val, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return false
	}
	n := 0
	for _, c := range strings.TrimSpace(parts[0]) {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n > 12 && n <= 31
}

// fingerprint hashes normalized header names so a previously seen bank
// layout can be recognized across sessions.
func fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}

func sampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if line >= startLine {
			rows = append(rows, record)
			if len(rows) >= maxRows {
				break
			}
		}
		line++
	}
	return rows
}

package parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestParseExcel(t *testing.T) {
	t.Run("basic workbook", func(t *testing.T) {
		buf := buildWorkbook(t, "Transactions", [][]interface{}{
			{"Date", "Description", "Amount"},
			{"2025-01-15", "WOOLWORTHS 1234", "-47.32"},
			{"2025-01-16", "SALARY", "5000.00"},
		})

		res, err := Parse(buf, "statement.xlsx", Options{})
		require.NoError(t, err)
		require.Len(t, res.Records, 2)
		assert.Equal(t, int64(-4732), res.Records[0].AmountCents)
		assert.Equal(t, "WOOLWORTHS 1234", res.Records[0].Description)
		assert.Equal(t, "statement.xlsx", res.Records[0].SourceFile)
	})

	t.Run("preamble rows before header", func(t *testing.T) {
		buf := buildWorkbook(t, "extrato", [][]interface{}{
			{"Account 4321"},
			{},
			{"Date", "Description", "Debit", "Credit"},
			{"2025-01-15", "COLES", "12.50", ""},
		})

		res, err := Parse(buf, "extrato.xlsx", Options{})
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, int64(-1250), res.Records[0].AmountCents)
	})

	t.Run("no usable header", func(t *testing.T) {
		buf := buildWorkbook(t, "Sheet", [][]interface{}{
			{"just", "random", "cells"},
		})

		_, err := Parse(buf, "junk.xlsx", Options{})
		var missing *MissingColumnError
		assert.ErrorAs(t, err, &missing)
	})

	t.Run("not an xlsx payload", func(t *testing.T) {
		_, err := Parse(bytes.NewReader([]byte("plain text")), "fake.xlsx", Options{})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

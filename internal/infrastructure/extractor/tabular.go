package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const SampleRows = 100

// rowSource yields rows until io.EOF.
type rowSource func() ([]string, error)

type tableSummary struct {
	headers   []string
	sample    [][]string
	totalRows int
	columns   int
}

// summarizeTable keeps at most SampleRows data rows but keeps scanning so
// totalRows and columns cover the whole table.
func summarizeTable(ctx context.Context, next rowSource) (tableSummary, error) {
	var sum tableSummary
	header, err := next()
	if errors.Is(err, io.EOF) {
		return sum, nil
	}
	if err != nil {
		return sum, err
	}
	sum.headers = header
	sum.columns = len(header)

	for {
		row, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("row %d: %w", sum.totalRows+2, err)
		}
		if sum.totalRows%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
		}
		sum.totalRows++
		if len(row) > sum.columns {
			sum.columns = len(row)
		}
		if len(sum.sample) < SampleRows {
			sum.sample = append(sum.sample, row)
		}
	}
	return sum, nil
}

func (s tableSummary) render(out *strings.Builder, label string) {
	if s.headers == nil {
		fmt.Fprintf(out, "%s is empty\n", label)
		return
	}
	fmt.Fprintf(out, "%s Headers: %s\n", label, strings.Join(s.headers, ", "))
	fmt.Fprintf(out, "Total Rows: %d\n", s.totalRows)
	fmt.Fprintf(out, "Total Columns: %d\n", s.columns)
	fmt.Fprintf(out, "\nSample Data (first %d rows):\n", len(s.sample))
	for _, row := range s.sample {
		out.WriteString(strings.Join(row, " | "))
		out.WriteByte('\n')
	}
}

func extractCSV(ctx context.Context, r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	sum, err := summarizeTable(ctx, reader.Read)
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	var out strings.Builder
	sum.render(&out, "CSV")
	return strings.TrimRight(out.String(), "\n"), nil
}

func extractXLSX(ctx context.Context, r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read xlsx: %w", err)
	}
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	var out strings.Builder
	for idx, sheet := range book.GetSheetList() {
		if idx > 0 {
			out.WriteString("\n")
		}
		fmt.Fprintf(&out, "--- Sheet %s ---\n", sheet)
		if err := summarizeSheet(ctx, book, sheet, &out); err != nil {
			return "", err
		}
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

func summarizeSheet(ctx context.Context, book *excelize.File, sheet string, out *strings.Builder) error {
	rows, err := book.Rows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	next := func() ([]string, error) {
		if !rows.Next() {
			if err := rows.Error(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return rows.Columns()
	}
	sum, err := summarizeTable(ctx, next)
	if err != nil {
		return fmt.Errorf("parse sheet %s: %w", sheet, err)
	}
	sum.render(out, "Sheet")
	return nil
}

package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestExtractPlainText(t *testing.T) {
	ex := New(0, nil)
	got := ex.Extract(context.Background(), strings.NewReader("Hello world"), "greeting.txt")

	want := domain.ExtractedContent{Text: "Hello world", ContentType: domain.ContentTypeText, IsTruncated: false}
	if got != want {
		t.Fatalf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtractDispatchIsCaseInsensitive(t *testing.T) {
	ex := New(0, nil)
	for _, name := range []string{"README.MD", "app.Log", "notes.TXT"} {
		got := ex.Extract(context.Background(), strings.NewReader("line"), name)
		if got.ContentType != domain.ContentTypeText {
			t.Fatalf("%s: expected text content type, got %q", name, got.ContentType)
		}
	}
}

func TestExtractTruncatesToMaxChars(t *testing.T) {
	const max = 50000
	ex := New(max, nil)

	long := strings.Repeat("ab", max)
	got := ex.Extract(context.Background(), strings.NewReader(long), "big.txt")
	if !got.IsTruncated {
		t.Fatalf("expected truncation")
	}
	if got.Text != long[:max]+TruncationNotice {
		t.Fatalf("unexpected truncated text length %d", len(got.Text))
	}

	exact := strings.Repeat("x", max)
	got = ex.Extract(context.Background(), strings.NewReader(exact), "exact.txt")
	if got.IsTruncated || got.Text != exact {
		t.Fatalf("content at the limit must be left unmodified")
	}
}

func TestExtractTruncationCountsCharactersNotBytes(t *testing.T) {
	ex := New(3, nil)
	got := ex.Extract(context.Background(), strings.NewReader("привет"), "ru.txt")
	if got.Text != "при"+TruncationNotice || !got.IsTruncated {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestExtractCSVSamplesAtMostHundredRows(t *testing.T) {
	for _, rows := range []int{0, 5, 100, 250} {
		var buf bytes.Buffer
		buf.WriteString("id,name,amount\n")
		for i := 0; i < rows; i++ {
			fmt.Fprintf(&buf, "%d,item-%d,%d.50\n", i, i, i)
		}

		got := New(0, nil).Extract(context.Background(), &buf, "data.csv")
		if got.ContentType != domain.ContentTypeCSV {
			t.Fatalf("rows=%d: unexpected content type %q (%s)", rows, got.ContentType, got.Text)
		}
		if !strings.Contains(got.Text, "CSV Headers: id, name, amount") {
			t.Fatalf("rows=%d: headers missing: %s", rows, got.Text)
		}
		if !strings.Contains(got.Text, fmt.Sprintf("Total Rows: %d\n", rows)) {
			t.Fatalf("rows=%d: wrong total row count: %s", rows, got.Text)
		}
		if !strings.Contains(got.Text, "Total Columns: 3") {
			t.Fatalf("rows=%d: wrong column count: %s", rows, got.Text)
		}

		sampled := strings.Count(got.Text, " | ")
		want := rows
		if want > SampleRows {
			want = SampleRows
		}
		// each sampled row renders three cells, so two separators
		if sampled != want*2 {
			t.Fatalf("rows=%d: expected %d sampled rows, got %d separators", rows, want, sampled)
		}
	}
}

func TestExtractEmptyCSV(t *testing.T) {
	got := New(0, nil).Extract(context.Background(), strings.NewReader(""), "empty.csv")
	if got.ContentType != domain.ContentTypeCSV || got.Text != "CSV is empty" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestExtractXLSXSummarizesSheets(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	if err := book.SetSheetRow(sheet, "A1", &[]any{"invoice", "total"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	for i := 2; i <= 4; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i)
		if err := book.SetSheetRow(sheet, cell, &[]any{fmt.Sprintf("INV-%d", i), i * 10}); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	got := New(0, nil).Extract(context.Background(), buf, "book.xlsx")
	if got.ContentType != domain.ContentTypeSpreadsheet {
		t.Fatalf("unexpected content type %q: %s", got.ContentType, got.Text)
	}
	for _, want := range []string{"--- Sheet " + sheet + " ---", "Sheet Headers: invoice, total", "Total Rows: 3", "INV-2 | 20"} {
		if !strings.Contains(got.Text, want) {
			t.Fatalf("expected %q in %s", want, got.Text)
		}
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	got := New(0, nil).Extract(context.Background(), strings.NewReader("MZ"), "setup.exe")
	if got.ContentType != domain.ContentTypeUnsupported || got.Degraded() {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.Text != "[Unsupported file type: .exe]" {
		t.Fatalf("unexpected placeholder %q", got.Text)
	}
}

func TestExtractAbsorbsReadErrors(t *testing.T) {
	got := New(0, nil).Extract(context.Background(), failingReader{}, "broken.txt")
	if got.ContentType != domain.ContentTypeError {
		t.Fatalf("expected error content type, got %+v", got)
	}
	if !domain.IsKind(got.Err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", got.Err)
	}
	if !strings.Contains(got.Text, "disk gone") {
		t.Fatalf("expected explanatory message, got %q", got.Text)
	}
}

func TestExtractAbsorbsMalformedPDF(t *testing.T) {
	got := New(0, nil).Extract(context.Background(), strings.NewReader("not a pdf"), "scan.pdf")
	if got.ContentType != domain.ContentTypeError || !got.Degraded() {
		t.Fatalf("expected degraded error content, got %+v", got)
	}
}

func TestExtractStripsNULBytes(t *testing.T) {
	// UTF-16LE "Hi" with a byte-order mark.
	raw := []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00}

	got := New(0, nil).Extract(context.Background(), bytes.NewReader(raw), "notes.txt")
	if got.ContentType != domain.ContentTypeText || got.Err != nil {
		t.Fatalf("expected text content, got %+v", got)
	}
	if strings.Contains(got.Text, "\x00") {
		t.Fatalf("NUL bytes must not reach stored text, got %q", got.Text)
	}
	if !strings.Contains(got.Text, "Hi") {
		t.Fatalf("expected printable characters to survive, got %q", got.Text)
	}
}

// buildPDF assembles a minimal uncompressed PDF with one Helvetica text line per page.
func buildPDF(pages ...string) []byte {
	var objects []string
	kids := make([]string, len(pages))
	fontID := 3 + len(pages)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
	)
	for i := range pages {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontID, fontID+1+i))
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for _, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFMarksEachPage(t *testing.T) {
	raw := buildPDF("Hello page one", "Second page text")

	got := New(0, nil).Extract(context.Background(), bytes.NewReader(raw), "report.pdf")
	if got.Err != nil {
		t.Fatalf("unexpected extraction error: %v", got.Err)
	}
	if got.ContentType != domain.ContentTypePDF {
		t.Fatalf("expected pdf content type, got %q", got.ContentType)
	}
	want := "--- Page 1 ---\nHello page one\n\n--- Page 2 ---\nSecond page text"
	if got.Text != want {
		t.Fatalf("Extract() text = %q, want %q", got.Text, want)
	}
}

package history

// pdf.go renders the history as a printable A4 lab report using
// go-pdf/fpdf: a title block, one table row per record and the total
// estimated spend.

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// Report column widths in mm; they add up to the 190 mm content width.
var pdfColumns = []struct {
	title string
	width float64
}{
	{"#", 10},
	{"Date", 32},
	{"Module", 48},
	{"Status", 20},
	{"Summary", 62},
	{"Cost", 18},
}

// WritePDF writes a lab report of entries to w.
func WritePDF(w io.Writer, title string, entries []Entry, generated time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	// core fonts are cp1252; the translator maps µ and friends
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "Generated "+generated.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 6, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 7)
	var records []Record
	for _, e := range entries {
		records = append(records, e.Record)
		cost := ""
		if c, ok := e.Cost(); ok {
			cost = "$" + c.StringFixed(2)
		}
		cells := []string{
			fmt.Sprint(e.Index),
			e.Timestamp.Format("2006-01-02 15:04"),
			e.Module,
			string(e.Status),
			e.Summary,
			cost,
		}
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 5, tr(truncate(pdf, cells[i], c.width-2)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	sum := Summarize(records)
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Records: %d (%d pending)   Total estimated spend: $%s",
		sum.Total, sum.Pending, sum.Spend.StringFixed(2)), "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// truncate shortens s with an ellipsis until it fits width mm in the
// current font.
func truncate(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

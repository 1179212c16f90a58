package report

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// GroupRow is one line of the group table in the report.
type GroupRow struct {
	Name    string
	Signals int
}

// Data holds everything the conversion report renders.
type Data struct {
	SourceFile     string
	GeneratedAt    time.Time
	OriginalCount  int
	SlotCount      int
	SignalCount    int
	SampleInterval float64
	FillInterval   float64
	Groups         []GroupRow
	Files          []string
	ManifestDigest string
}

// SaveConversionPDF renders the conversion report into a PDF document.
func SaveConversionPDF(data Data, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Conversion Report", false)
	pdf.SetAuthor("canconv", false)
	pdf.SetCreator("canconv", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Conversion Report")
	addSummarySection(pdf, data)
	addGroupSection(pdf, data.Groups)
	addFileSection(pdf, data.Files)
	addDigestSection(pdf, data.ManifestDigest)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, data Data) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Source", value: emptyFallback(filepath.Base(data.SourceFile), "-")},
		{label: "Generated", value: data.GeneratedAt.Format(time.RFC3339)},
		{label: "Frames Decoded", value: strconv.Itoa(data.OriginalCount)},
		{label: "Time Slots", value: strconv.Itoa(data.SlotCount)},
		{label: "Signals", value: strconv.Itoa(data.SignalCount)},
		{label: "Sample Interval", value: strconv.FormatFloat(data.SampleInterval, 'g', -1, 64) + " s"},
		{label: "Fill Interval", value: strconv.FormatFloat(data.FillInterval, 'g', -1, 64) + " s"},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addGroupSection(pdf *gofpdf.Fpdf, rows []GroupRow) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Signal Groups")
	pdf.Ln(9)

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No signals decoded.", "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{"Group", "Signals"}
	widths := []float64{120, 40}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		pdf.CellFormat(widths[0], 6, emptyFallback(row.Name, "-"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strconv.Itoa(row.Signals), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFileSection(pdf *gofpdf.Fpdf, files []string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Output Files")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	if len(files) == 0 {
		pdf.MultiCell(0, 5, "No files written.", "", "L", false)
	}
	for _, f := range files {
		pdf.MultiCell(0, 5, filepath.Base(f), "", "L", false)
	}
	pdf.Ln(4)
}

func addDigestSection(pdf *gofpdf.Fpdf, digest string) {
	if strings.TrimSpace(digest) == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Manifest Digest")
	pdf.Ln(9)

	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, digest, "", "L", false)
	pdf.Ln(2)

	png, err := DigestQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("manifest-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("manifest-qr", pdf.GetX(), pdf.GetY(), 40, 40, false, opts, 0, "")
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

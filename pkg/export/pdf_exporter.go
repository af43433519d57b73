package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			value := row[header]
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Attestation describes the fields printed on an internship certificate.
type Attestation struct {
	Reference     string
	StagiaireName string
	TuteurName    string
	Periode       string
	IssuedOn      string
	Lines         []string
}

// RenderAttestation produces a single-page attestation de stage.
func (e *PDFExporter) RenderAttestation(att Attestation) ([]byte, error) {
	if att.StagiaireName == "" {
		return nil, fmt.Errorf("attestation requires a stagiaire name")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 12, "ATTESTATION DE STAGE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	if att.Reference != "" {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("Ref: %s", att.Reference), "", 1, "R", false, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 7, fmt.Sprintf("Nous certifions que %s a effectue un stage au sein de notre organisation, sous la supervision de %s, pour la periode %s.", att.StagiaireName, att.TuteurName, att.Periode), "", "L", false)
	pdf.Ln(4)

	for _, line := range att.Lines {
		pdf.MultiCell(0, 7, line, "", "L", false)
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Fait le %s", att.IssuedOn), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render attestation: %w", err)
	}
	return buf.Bytes(), nil
}

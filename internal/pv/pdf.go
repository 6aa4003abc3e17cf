package pv

import (
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"
)

const (
	pdfFont       = "Times"
	pdfMargin     = 20.0
	pdfLineHeight = 5.5
)

// points
var pdfSizes = map[Kind]float64{
	KindTitle:      16,
	KindHeading:    13,
	KindSubheading: 12,
	KindParagraph:  11,
	KindListItem:   11,
}

var pdfAlign = map[Align]string{
	AlignLeft:    "L",
	AlignCenter:  "C",
	AlignRight:   "R",
	AlignJustify: "J",
}

// WritePDF writes blocks as an A4 PDF using the core Times font.
func WritePDF(w io.Writer, title string, blocks []Block) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("fiduciaire", true)

	// core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	for _, b := range blocks {
		pdfBlock(pdf, tr, b)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}
	return pdf.Output(w)
}

func pdfBlock(pdf *gofpdf.Fpdf, tr func(string) string, b Block) {
	size := pdfSizes[b.Kind]
	heading := b.Kind == KindTitle || b.Kind == KindHeading || b.Kind == KindSubheading

	switch b.Kind {
	case KindTitle, KindHeading, KindSubheading:
		pdf.Ln(3)
	case KindListItem:
		pdf.SetX(pdfMargin + 5)
	}

	if heading || uniformStyle(b.Runs) {
		style := runStyle(b.Runs[0])
		if heading {
			style = "B"
		}
		text := b.Text()
		if b.Kind == KindListItem {
			text = "• " + text
		}
		pdf.SetFont(pdfFont, style, size)
		pdf.MultiCell(0, pdfLineHeight, tr(text), "", pdfAlign[b.Align], false)
	} else {
		// mixed styles flow left-aligned
		if b.Kind == KindListItem {
			pdf.SetFont(pdfFont, "", size)
			pdf.Write(pdfLineHeight, tr("• "))
		}
		for _, r := range b.Runs {
			if r.Break {
				pdf.Ln(pdfLineHeight)
				continue
			}
			pdf.SetFont(pdfFont, runStyle(r), size)
			pdf.Write(pdfLineHeight, tr(r.Text))
		}
		pdf.Ln(pdfLineHeight)
	}

	if b.Kind != KindListItem {
		pdf.Ln(2)
	}
}

func runStyle(r Run) string {
	switch {
	case r.Bold && r.Italic:
		return "BI"
	case r.Bold:
		return "B"
	case r.Italic:
		return "I"
	}
	return ""
}

func uniformStyle(runs []Run) bool {
	style := ""
	first := true
	for _, r := range runs {
		if r.Break {
			continue
		}
		if first {
			style, first = runStyle(r), false
			continue
		}
		if runStyle(r) != style {
			return false
		}
	}
	return true
}

package pv

import (
	"fmt"
	"io"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/gomutex/godocx/wml/stypes"
)

const docxFont = "Times New Roman"

// points
var docxSizes = map[Kind]uint64{
	KindTitle:      16,
	KindHeading:    13,
	KindSubheading: 12,
	KindParagraph:  11,
	KindListItem:   11,
}

var docxAlign = map[Align]stypes.Justification{
	AlignLeft:    stypes.JustificationLeft,
	AlignCenter:  stypes.JustificationCenter,
	AlignRight:   stypes.JustificationRight,
	AlignJustify: stypes.JustificationBoth,
}

// WriteDOCX writes blocks as a Word document on A4 paper with 2.5 cm margins.
// title is kept for parity with WritePDF; the package metadata comes from
// the library's base document.
func WriteDOCX(w io.Writer, title string, blocks []Block) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("docx %s: %w", title, err)
	}
	docxPage(doc)
	for _, b := range blocks {
		docxParagraph(doc, b)
	}
	if err := doc.Write(w); err != nil {
		return fmt.Errorf("docx %s: %w", title, err)
	}
	return nil
}

// twentieths of a point
func docxPage(doc *docx.RootDoc) {
	body := doc.Document.Body
	if body.SectPr == nil {
		body.SectPr = ctypes.NewSectionProper()
	}
	width, height := uint64(11906), uint64(16838)
	margin, header := 1417, 708
	gutter := 0
	body.SectPr.PageSize = &ctypes.PageSize{Width: &width, Height: &height}
	body.SectPr.PageMargin = &ctypes.PageMargin{
		Top: &margin, Right: &margin, Bottom: &margin, Left: &margin,
		Header: &header, Footer: &header, Gutter: &gutter,
	}
}

func docxParagraph(doc *docx.RootDoc, b Block) {
	p := doc.AddEmptyParagraph()
	p.Justification(docxAlign[b.Align])

	prop := p.GetCT().Property
	switch b.Kind {
	case KindTitle, KindHeading:
		prop.Spacing = docxSpacing(240, 240)
	case KindSubheading:
		prop.KeepNext = ctypes.OnOffFromBool(true)
		prop.Spacing = docxSpacing(240, 120)
	case KindListItem:
		left, hanging := 720, uint64(360)
		prop.Spacing = docxSpacing(0, 60)
		prop.Indent = &ctypes.Indent{Left: &left, Hanging: &hanging}
	default:
		prop.Spacing = docxSpacing(0, 120)
	}

	headingBold := b.Kind == KindTitle || b.Kind == KindHeading || b.Kind == KindSubheading
	size := docxSizes[b.Kind]
	if b.Kind == KindListItem {
		docxRun(p, Run{Text: "• "}, size, false)
	}
	for _, r := range b.Runs {
		docxRun(p, r, size, headingBold)
	}
}

func docxSpacing(before, after uint64) *ctypes.Spacing {
	s := &ctypes.Spacing{After: &after}
	if before > 0 {
		s.Before = &before
	}
	return s
}

func docxRun(p *docx.Paragraph, r Run, size uint64, forceBold bool) {
	if r.Break {
		p.AddRun().AddBreak(nil)
		return
	}
	p.AddText(r.Text).
		Bold(r.Bold || forceBold).
		Italic(r.Italic).
		Size(size)

	children := p.GetCT().Children
	run := children[len(children)-1].Run
	run.Property.Fonts = &ctypes.RunFonts{Ascii: docxFont, HAnsi: docxFont, CS: docxFont}
}

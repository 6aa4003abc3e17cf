package pv

import (
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Kind paragraph role in the rendered document.
type Kind int

const (
	KindTitle Kind = iota + 1
	KindHeading
	KindSubheading
	KindParagraph
	KindListItem
)

// Align horizontal alignment.
type Align string

const (
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignRight   Align = "right"
	AlignJustify Align = "justify"
)

// Run a piece of text sharing one style. Break is a line break.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
	Break  bool
}

// Block one paragraph.
type Block struct {
	Kind  Kind
	Align Align
	Runs  []Run
}

// Text returns the plain text, breaks as newlines.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		if r.Break {
			sb.WriteByte('\n')
			continue
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// ParseBlocks turns rendered minutes HTML into paragraphs. Only the
// subset used by the templates is understood: h1-h4, p, div, li, strong/b,
// em/i, br, and alignment through class or text-align.
func ParseBlocks(src string) ([]Block, error) {
	z := html.NewTokenizer(strings.NewReader(src))

	var (
		blocks       []Block
		cur          *Block
		bold, italic int
	)
	flush := func() {
		if cur == nil {
			return
		}
		trimRuns(cur)
		if len(cur.Runs) > 0 {
			blocks = append(blocks, *cur)
		}
		cur = nil
	}
	open := func(kind Kind, align Align) {
		flush()
		cur = &Block{Kind: kind, Align: align}
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			flush()
			return blocks, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			var class, style string
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "class":
					class = string(val)
				case "style":
					style = string(val)
				}
			}
			align := alignOf(class, style)

			switch string(name) {
			case "h1":
				open(KindTitle, orAlign(align, AlignCenter))
			case "h2":
				open(KindHeading, orAlign(align, AlignCenter))
			case "h3", "h4":
				open(KindSubheading, orAlign(align, AlignLeft))
			case "p", "div":
				open(KindParagraph, orAlign(align, AlignJustify))
			case "li":
				open(KindListItem, orAlign(align, AlignLeft))
			case "strong", "b":
				bold++
			case "em", "i":
				italic++
			case "br":
				if cur != nil {
					cur.Runs = append(cur.Runs, Run{Break: true})
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "h1", "h2", "h3", "h4", "p", "div", "li":
				flush()
			case "strong", "b":
				if bold > 0 {
					bold--
				}
			case "em", "i":
				if italic > 0 {
					italic--
				}
			}

		case html.TextToken:
			text := collapseSpace(string(z.Text()))
			if cur == nil {
				if strings.TrimSpace(text) == "" {
					continue
				}
				open(KindParagraph, AlignJustify)
			}
			cur.Runs = append(cur.Runs, Run{Text: text, Bold: bold > 0, Italic: italic > 0})
		}
	}
}

func alignOf(class, style string) Align {
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	for _, a := range []Align{AlignCenter, AlignRight, AlignLeft, AlignJustify} {
		if strings.Contains(style, "text-align:"+string(a)) {
			return a
		}
	}
	for _, c := range strings.Fields(class) {
		switch c {
		case "center", "text-center":
			return AlignCenter
		case "right", "text-right":
			return AlignRight
		case "left", "text-left":
			return AlignLeft
		}
	}
	return ""
}

func orAlign(a, fallback Align) Align {
	if a == "" {
		return fallback
	}
	return a
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// trimRuns drops whitespace at line edges and empty runs.
func trimRuns(b *Block) {
	runs := b.Runs[:0]
	lineStart := true
	for _, r := range b.Runs {
		if r.Break {
			runs = trimTrailing(runs)
			runs = append(runs, r)
			lineStart = true
			continue
		}
		if lineStart {
			r.Text = strings.TrimLeft(r.Text, " ")
		}
		if r.Text == "" {
			continue
		}
		lineStart = false
		runs = append(runs, r)
	}
	runs = trimTrailing(runs)
	for len(runs) > 0 && runs[0].Break {
		runs = runs[1:]
	}
	for len(runs) > 0 && runs[len(runs)-1].Break {
		runs = runs[:len(runs)-1]
	}
	b.Runs = runs
}

func trimTrailing(runs []Run) []Run {
	for len(runs) > 0 {
		last := &runs[len(runs)-1]
		if last.Break {
			return runs
		}
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			return runs
		}
		runs = runs[:len(runs)-1]
	}
	return runs
}

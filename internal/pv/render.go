package pv

import (
	"fmt"
	"html"
	"io"
	"strings"

	"fiduciaire/pkg/errors"
)

// Format download format.
type Format string

const (
	FormatHTML Format = "html"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts html, docx and pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatDOCX, FormatPDF:
		return f, nil
	}
	return "", errors.Newf(errors.ErrValidation, "format non supporté: %s", s)
}

// ContentType MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

const htmlPage = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Times New Roman", serif; font-size: 11pt; max-width: 800px; margin: 2em auto; text-align: justify; }
h1, h2 { text-align: center; }
.center { text-align: center; }
.right { text-align: right; }
</style>
</head>
<body>
%s
</body>
</html>
`

// Write renders substituted minutes HTML into w.
func Write(w io.Writer, f Format, title, body string) error {
	switch f {
	case FormatHTML:
		_, err := fmt.Fprintf(w, htmlPage, html.EscapeString(title), body)
		return err
	case FormatDOCX, FormatPDF:
		blocks, err := ParseBlocks(body)
		if err != nil {
			return fmt.Errorf("parse minutes: %w", err)
		}
		if f == FormatDOCX {
			return WriteDOCX(w, title, blocks)
		}
		return WritePDF(w, title, blocks)
	}
	return errors.Newf(errors.ErrValidation, "format non supporté: %s", f)
}

package render

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"git.home.luguber.info/inful/typeset/internal/compile"
)

// Page geometry shared by the renderers, in points (A4).
const (
	pageWidthPt  = 595
	pageHeightPt = 842
	marginPt     = 56
	lineHeightPt = 14
	fontSizePt   = 11
)

type svgRenderer struct{}

func (svgRenderer) RenderPage(doc compile.Document, page int, opts Options) ([]byte, error) {
	src, err := asPageSource(doc)
	if err != nil {
		return nil, err
	}
	if page < 0 || page >= src.PageCount() {
		return nil, fmt.Errorf("page %d out of range (document has %d)", page+1, src.PageCount())
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	fmt.Fprintf(&buf,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%dpt" height="%dpt" viewBox="0 0 %d %d">`+"\n",
		pageWidthPt, pageHeightPt, pageWidthPt, pageHeightPt)
	fmt.Fprintf(&buf, `<rect width="%d" height="%d" fill="white"/>`+"\n", pageWidthPt, pageHeightPt)

	y := marginPt
	for _, line := range src.Page(page) {
		if line != "" {
			fmt.Fprintf(&buf, `<text x="%d" y="%d" font-family=%q font-size="%d">%s</text>`+"\n",
				marginPt, y, src.Font(), fontSizePt, xmlEscape(line))
		}
		y += lineHeightPt
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

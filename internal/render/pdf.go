package render

import (
	"bytes"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/typeset/internal/compile"
)

// pdfRenderer emits a minimal PDF 1.4 document: one content stream per page,
// a single built-in Helvetica font, no compression. The CreationDate comes
// from the document's compile instant, so a fixed session timestamp yields
// byte-identical files.
type pdfRenderer struct{}

func (pdfRenderer) RenderDocument(doc compile.Document, pages []int, opts Options) ([]byte, error) {
	src, err := asPageSource(doc)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = make([]int, src.PageCount())
		for i := range pages {
			pages[i] = i
		}
	}
	for _, p := range pages {
		if p < 0 || p >= src.PageCount() {
			return nil, fmt.Errorf("page %d out of range (document has %d)", p+1, src.PageCount())
		}
	}

	w := &pdfWriter{buf: &bytes.Buffer{}}
	w.buf.WriteString("%PDF-1.4\n")

	// Object layout: 1 catalog, 2 pages tree, 3 font, 4 info,
	// then page/content pairs from 5 on.
	pageRefs := make([]string, 0, len(pages))
	for i := range pages {
		pageRefs = append(pageRefs, fmt.Sprintf("%d 0 R", 5+i*2))
	}

	w.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(pageRefs, " "), len(pages)))
	w.object(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	w.object(4, fmt.Sprintf("<< /Producer (typeset) /CreationDate (D:%s) >>",
		src.CreatedAt().UTC().Format("20060102150405")))

	for i, p := range pages {
		pageObj := 5 + i*2
		contentObj := pageObj + 1
		w.object(pageObj, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageWidthPt, pageHeightPt, contentObj))
		w.stream(contentObj, contentStream(src.Page(p)))
	}

	w.trailer(4 + len(pages)*2)
	return w.buf.Bytes(), nil
}

func contentStream(lines []string) string {
	var sb strings.Builder
	sb.WriteString("BT\n")
	fmt.Fprintf(&sb, "/F1 %d Tf\n", fontSizePt)
	fmt.Fprintf(&sb, "%d %d Td\n", marginPt, pageHeightPt-marginPt)
	fmt.Fprintf(&sb, "%d TL\n", lineHeightPt)
	for _, line := range lines {
		fmt.Fprintf(&sb, "(%s) Tj T*\n", pdfEscape(line))
	}
	sb.WriteString("ET\n")
	return sb.String()
}

func pdfEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// pdfWriter tracks byte offsets for the xref table.
type pdfWriter struct {
	buf     *bytes.Buffer
	offsets []int
}

func (w *pdfWriter) object(num int, body string) {
	w.mark(num)
	fmt.Fprintf(w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (w *pdfWriter) stream(num int, content string) {
	w.mark(num)
	fmt.Fprintf(w.buf, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		num, len(content), content)
}

func (w *pdfWriter) mark(num int) {
	for len(w.offsets) < num {
		w.offsets = append(w.offsets, 0)
	}
	w.offsets[num-1] = w.buf.Len()
}

func (w *pdfWriter) trailer(lastObj int) {
	xref := w.buf.Len()
	fmt.Fprintf(w.buf, "xref\n0 %d\n", lastObj+1)
	w.buf.WriteString("0000000000 65535 f \n")
	for i := 0; i < lastObj; i++ {
		fmt.Fprintf(w.buf, "%010d 00000 n \n", w.offsets[i])
	}
	fmt.Fprintf(w.buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		lastObj+1, xref)
}

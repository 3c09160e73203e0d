package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"git.home.luguber.info/inful/typeset/internal/compile"
)

type pngRenderer struct{}

func (pngRenderer) RenderPage(doc compile.Document, page int, opts Options) ([]byte, error) {
	src, err := asPageSource(doc)
	if err != nil {
		return nil, err
	}
	if page < 0 || page >= src.PageCount() {
		return nil, fmt.Errorf("page %d out of range (document has %d)", page+1, src.PageCount())
	}

	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	width := int(float64(pageWidthPt) * scale)
	height := int(float64(pageHeightPt) * scale)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	y := int(float64(marginPt) * scale)
	for _, line := range src.Page(page) {
		drawer.Dot = fixed.P(int(float64(marginPt)*scale), y)
		drawer.DrawString(line)
		y += int(float64(lineHeightPt) * scale)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

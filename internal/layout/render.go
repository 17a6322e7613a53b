package layout

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
)

var outlineColor = color.NRGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}

// RenderPage rasterizes one composed page onto a white canvas, reading each
// placement's source file from disk.
func (e *Engine) RenderPage(page Page) (*image.NRGBA, error) {
	canvas := imaging.New(e.pageW, e.pageH, color.White)
	drawRectOutline(canvas, e.gap, e.gap, e.pageW-2*e.gap, e.pageH-2*e.gap)

	for _, p := range page.Placements {
		src, err := imaging.Open(p.Image.Ref, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p.Image.Ref, err)
		}
		resized := imaging.Resize(src, p.W, p.H, imaging.Lanczos)
		canvas = imaging.Paste(canvas, resized, image.Pt(p.X, p.Y))
		drawRectOutline(canvas, p.X, p.Y, p.W, p.H)
	}
	return canvas, nil
}

// WriteDocument renders every page and assembles the PDF at pdfPath, with
// the placement metadata sidecar at metaPath.
func (e *Engine) WriteDocument(doc *Document, pdfPath, metaPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	for i, page := range doc.Pages {
		raster, err := e.RenderPage(page)
		if err != nil {
			return fmt.Errorf("render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, raster); err != nil {
			return fmt.Errorf("encode page %d: %w", i+1, err)
		}
		name := fmt.Sprintf("page-%d", i+1)
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.AddPage()
		pdf.ImageOptions(name, 0, 0, pageWidthMM, pageHeightMM, false, opts, 0, "")
	}
	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	if err := WriteMetadata(doc.Meta, metaPath); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// ComposeFiles probes the given files, composes them, and writes the PDF
// plus metadata sidecar. Unreadable files are skipped; if none remain the
// engine refuses to produce an empty document.
func (e *Engine) ComposeFiles(paths []string, pdfPath, metaPath string) error {
	images := make([]SourceImage, 0, len(paths))
	for _, p := range paths {
		img, err := ProbeImage(p)
		if err != nil {
			continue
		}
		images = append(images, img)
	}
	doc, err := e.Compose(images)
	if err != nil {
		return err
	}
	return e.WriteDocument(doc, pdfPath, metaPath)
}

// ProbeImage reads the pixel dimensions of an image file without decoding
// the full bitmap. Importing imaging above registers the decoders.
func ProbeImage(path string) (SourceImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return SourceImage{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return SourceImage{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return SourceImage{Ref: path, Width: cfg.Width, Height: cfg.Height}, nil
}

// drawRectOutline draws a one pixel light gray rectangle outline.
func drawRectOutline(img *image.NRGBA, x, y, w, h int) {
	if w < 1 || h < 1 {
		return
	}
	for i := x; i < x+w; i++ {
		setPx(img, i, y)
		setPx(img, i, y+h-1)
	}
	for j := y; j < y+h; j++ {
		setPx(img, x, j)
		setPx(img, x+w-1, j)
	}
}

func setPx(img *image.NRGBA, x, y int) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetNRGBA(x, y, outlineColor)
	}
}

// Package layout places variably sized images onto fixed A4 pages.
//
// Compose is a pure function: it never touches the filesystem and never
// shares mutable state between calls. Pages are filled by two aspect
// preserving fast paths tuned for phone photos near A5 size, with a
// guillotine bin packer as the fallback for everything else.
package layout

import (
	"math"
	"sort"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
)

const (
	// A4 in millimetres.
	pageWidthMM  = 210.0
	pageHeightMM = 297.0

	// DefaultDPI is the default rendering resolution (2480x3508 px).
	DefaultDPI = 300

	mmPerInch = 25.4

	marginMM = 15.0
	gapMM    = 5.0

	// A5 reference is computed at a lower comparison resolution so that
	// downscaled phone photos still qualify for the fast paths.
	a5CompareDPI = 200
	a5ShortMM    = 148.0
	a5LongMM     = 210.0

	// Inked-area target for the generic packer, in square millimetres.
	pageTargetAreaMM2 = 62370.0

	// Generic packer works on at most this many images per page.
	maxCandidates = 8

	roughlyA5Lookahead = 50
)

// scaleFactors shrinks the per-image area target when a page refuses to
// accept all candidates at the nominal target.
var scaleFactors = []float64{1.0, 0.9, 0.8, 0.75, 0.7, 0.65, 0.6}

// SizeClass tags an image relative to the printable page area.
type SizeClass string

const (
	ClassFull    SizeClass = "full"
	ClassHalf    SizeClass = "half"
	ClassQuarter SizeClass = "quarter"
	ClassSmall   SizeClass = "small"
)

// SourceImage is one input to Compose: a content reference (a local file
// path at render time) plus pixel dimensions.
type SourceImage struct {
	Ref    string
	Width  int
	Height int
}

// Placement is one image positioned on a page, in page pixels.
type Placement struct {
	Image   SourceImage
	X, Y    int
	W, H    int
	Class   SizeClass
	Stretch bool // packer stretch mode fills the rect exactly, ignoring aspect
}

// Page is an ordered list of placements.
type Page struct {
	Placements []Placement
}

// Document is the output of Compose: ordered pages plus serializable
// placement metadata.
type Document struct {
	DPI        int
	PageWidth  int
	PageHeight int
	Margin     int
	Pages      []Page
	Meta       Metadata
}

// Engine composes documents at a fixed resolution.
type Engine struct {
	dpi        int
	pageW      int
	pageH      int
	margin     int
	gap        int
	a5ShortPx  int
	a5LongPx   int
	pageTarget float64 // px^2
}

// NewEngine returns an engine rendering at the given resolution; dpi <= 0
// selects DefaultDPI.
func NewEngine(dpi int) *Engine {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	e := &Engine{
		dpi:   dpi,
		pageW: mmToPx(pageWidthMM, dpi),
		pageH: mmToPx(pageHeightMM, dpi),
	}
	e.margin = min(mmToPx(marginMM, dpi), int(0.03*float64(e.pageW)))
	e.gap = mmToPx(gapMM, dpi)
	e.a5ShortPx = mmToPx(a5ShortMM, a5CompareDPI)
	e.a5LongPx = mmToPx(a5LongMM, a5CompareDPI)
	pxPerMM := float64(dpi) / mmPerInch
	e.pageTarget = pageTargetAreaMM2 * pxPerMM * pxPerMM
	return e
}

func mmToPx(mm float64, dpi int) int {
	return int(math.Round(mm / mmPerInch * float64(dpi)))
}

// Compose lays the given images out onto one or more A4 pages. Images with
// non-positive dimensions are dropped; composing zero valid images returns
// domain.ErrEmptyInput, never a zero-page document.
func (e *Engine) Compose(images []SourceImage) (*Document, error) {
	remaining := make([]SourceImage, 0, len(images))
	for _, img := range images {
		if img.Width > 0 && img.Height > 0 {
			remaining = append(remaining, img)
		}
	}
	if len(remaining) == 0 {
		return nil, domain.ErrEmptyInput
	}

	// Descending pixel area; stable keeps arrival order for ties.
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Width*remaining[i].Height > remaining[j].Width*remaining[j].Height
	})

	doc := &Document{
		DPI:        e.dpi,
		PageWidth:  e.pageW,
		PageHeight: e.pageH,
		Margin:     e.margin,
	}

	for len(remaining) > 0 {
		pair, havePair := e.findRoughlyA5Pair(remaining)
		// A scan near the A5 reference can pass the larger-than test too.
		// A waiting A5 sibling wins: the two share a page instead of the
		// head taking a full page on its own.
		if e.largerThanA5(remaining[0]) && !(havePair && pair[0] == 0) {
			doc.Pages = append(doc.Pages, e.fullPage(remaining[0]))
			remaining = remaining[1:]
			continue
		}
		if havePair {
			doc.Pages = append(doc.Pages, e.sideBySidePage(remaining[pair[0]], remaining[pair[1]]))
			remaining = removeIndices(remaining, pair[0], pair[1])
			continue
		}
		n := len(remaining)
		if n > maxCandidates {
			n = maxCandidates
		}
		page, placed := e.packPage(remaining[:n])
		doc.Pages = append(doc.Pages, page)
		remaining = removeIndexSet(remaining, placed)
	}

	doc.Meta = buildMetadata(doc)
	return doc, nil
}

// largerThanA5 reports whether the image dwarfs the A5 reference and should
// get a page of its own.
func (e *Engine) largerThanA5(img SourceImage) bool {
	short, long := img.Width, img.Height
	if short > long {
		short, long = long, short
	}
	if long >= e.a5LongPx && float64(short) >= 0.65*float64(e.a5ShortPx) {
		return true
	}
	a5Area := float64(e.a5ShortPx) * float64(e.a5LongPx)
	return float64(img.Width*img.Height) >= 1.1*a5Area
}

// roughlyA5 reports whether the image matches the A5 reference closely
// enough to share a page with a sibling.
func (e *Engine) roughlyA5(img SourceImage) bool {
	short, long := img.Width, img.Height
	if short > long {
		short, long = long, short
	}
	within := func(v, ref, tol float64) bool {
		return v >= ref*(1-tol) && v <= ref*(1+tol)
	}
	if within(float64(short), float64(e.a5ShortPx), 0.18) && within(float64(long), float64(e.a5LongPx), 0.18) {
		return true
	}
	a5Area := float64(e.a5ShortPx) * float64(e.a5LongPx)
	a5Aspect := float64(e.a5ShortPx) / float64(e.a5LongPx)
	return within(float64(short*long), a5Area, 0.30) && within(float64(short)/float64(long), a5Aspect, 0.10)
}

// findRoughlyA5Pair scans the lookahead window for two A5-like images. The
// two matches need not be adjacent; skipped images stay in place.
func (e *Engine) findRoughlyA5Pair(imgs []SourceImage) ([2]int, bool) {
	var pair [2]int
	found := 0
	limit := len(imgs)
	if limit > roughlyA5Lookahead {
		limit = roughlyA5Lookahead
	}
	for i := 0; i < limit && found < 2; i++ {
		if e.roughlyA5(imgs[i]) {
			pair[found] = i
			found++
		}
	}
	return pair, found == 2
}

// fullPage centers one image on an otherwise empty page, aspect preserved,
// never upscaled.
func (e *Engine) fullPage(img SourceImage) Page {
	cw := e.pageW - 2*e.margin
	ch := e.pageH - 2*e.margin
	return Page{Placements: []Placement{
		e.fitInCell(img, e.margin, e.margin, cw, ch),
	}}
}

// sideBySidePage places two images side by side, each in half the printable
// width minus the gutter, full printable height.
func (e *Engine) sideBySidePage(left, right SourceImage) Page {
	cw := (e.pageW - 2*e.margin - e.gap) / 2
	ch := e.pageH - 2*e.margin
	return Page{Placements: []Placement{
		e.fitInCell(left, e.margin, e.margin, cw, ch),
		e.fitInCell(right, e.margin+cw+e.gap, e.margin, cw, ch),
	}}
}

// fitInCell scales the image to fit the cell (downscale only) and centers it.
func (e *Engine) fitInCell(img SourceImage, cx, cy, cw, ch int) Placement {
	scale := math.Min(float64(cw)/float64(img.Width), float64(ch)/float64(img.Height))
	if scale > 1.0 {
		scale = 1.0
	}
	w := int(math.Round(float64(img.Width) * scale))
	h := int(math.Round(float64(img.Height) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Placement{
		Image: img,
		X:     cx + (cw-w)/2,
		Y:     cy + (ch-h)/2,
		W:     w,
		H:     h,
		Class: e.classify(img),
	}
}

// classify tags an image relative to the printable page dimensions.
func (e *Engine) classify(img SourceImage) SizeClass {
	pw := float64(e.pageW - 2*e.margin)
	ph := float64(e.pageH - 2*e.margin)
	fw := float64(img.Width) / pw
	fh := float64(img.Height) / ph
	switch {
	case fw >= 0.95 && fh >= 0.95:
		return ClassFull
	case fw >= 0.45 && fh >= 0.45:
		return ClassHalf
	case fw >= 0.22 && fh >= 0.22:
		return ClassQuarter
	default:
		return ClassSmall
	}
}

// removeIndices drops exactly the two given indices from imgs.
func removeIndices(imgs []SourceImage, i, j int) []SourceImage {
	out := make([]SourceImage, 0, len(imgs)-2)
	for k, img := range imgs {
		if k == i || k == j {
			continue
		}
		out = append(out, img)
	}
	return out
}

// removeIndexSet drops every index in placed from imgs.
func removeIndexSet(imgs []SourceImage, placed map[int]bool) []SourceImage {
	out := make([]SourceImage, 0, len(imgs))
	for k, img := range imgs {
		if placed[k] {
			continue
		}
		out = append(out, img)
	}
	return out
}

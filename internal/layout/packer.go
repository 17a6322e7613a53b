package layout

import "math"

// freeRect is an axis-aligned free region on the page, in page pixels.
type freeRect struct {
	x, y, w, h int
}

func (r freeRect) area() float64 {
	return float64(r.w) * float64(r.h)
}

func (r freeRect) contains(o freeRect) bool {
	return o.x >= r.x && o.y >= r.y &&
		o.x+o.w <= r.x+r.w && o.y+o.h <= r.y+r.h
}

// aspectOptions returns the candidate width:height ratios tried for an
// image: its own ratio first, then a fixed set of common ones.
func aspectOptions(img SourceImage) []float64 {
	return []float64{
		float64(img.Width) / float64(img.Height),
		1.0,
		4.0 / 3.0,
		3.0 / 4.0,
		16.0 / 9.0,
		9.0 / 16.0,
	}
}

// rectForAspect returns the rectangle of the given aspect, fitting inside
// free, whose area is closest to target. Returns ok=false when the free
// rectangle is degenerate.
func rectForAspect(aspect float64, free freeRect, target float64) (w, h int, ok bool) {
	if free.w < 1 || free.h < 1 || aspect <= 0 {
		return 0, 0, false
	}
	// Largest rect of this aspect that fits.
	fw := float64(free.w)
	fh := fw / aspect
	if fh > float64(free.h) {
		fh = float64(free.h)
		fw = fh * aspect
	}
	if fw*fh > target {
		// Shrink to the target area; still fits since it only got smaller.
		fw = math.Sqrt(target * aspect)
		fh = fw / aspect
	}
	w = int(math.Floor(fw))
	h = int(math.Floor(fh))
	if w < 1 || h < 1 {
		return 0, 0, false
	}
	return w, h, true
}

// packPage fills one page from up to maxCandidates images using guillotine
// splits. It retries the whole page with a shrinking per-image area target
// until every candidate fits, or returns the best partial placement after
// the last factor. The returned set holds the candidate indices placed.
//
// Placed images are stretched to their rectangle exactly: the packer trades
// aspect fidelity for hitting the page's inked-area target.
func (e *Engine) packPage(cands []SourceImage) (Page, map[int]bool) {
	perImage := e.pageTarget / float64(maxCandidates)

	var bestPlacements []Placement
	var bestPlaced map[int]bool
	for _, f := range scaleFactors {
		placements, placed := e.packAttempt(cands, perImage*f)
		if len(placed) == len(cands) {
			return Page{Placements: placements}, placed
		}
		if len(placed) > len(bestPlaced) {
			bestPlacements, bestPlaced = placements, placed
		}
	}
	return Page{Placements: bestPlacements}, bestPlaced
}

// packAttempt runs one greedy pass at a fixed per-image area target.
func (e *Engine) packAttempt(cands []SourceImage, perImage float64) ([]Placement, map[int]bool) {
	free := []freeRect{{
		x: e.margin,
		y: e.margin,
		w: e.pageW - 2*e.margin,
		h: e.pageH - 2*e.margin,
	}}
	placed := make(map[int]bool, len(cands))
	var placements []Placement

	for len(placed) < len(cands) {
		bestScore := 0.0
		bestCand := -1
		var bestRect int
		var bestW, bestH int
		for i, img := range cands {
			if placed[i] {
				continue
			}
			for ri, fr := range free {
				for _, aspect := range aspectOptions(img) {
					w, h, ok := rectForAspect(aspect, fr, perImage)
					if !ok {
						continue
					}
					score := float64(w) * float64(h) / fr.area()
					if score > bestScore {
						bestScore = score
						bestCand, bestRect = i, ri
						bestW, bestH = w, h
					}
				}
			}
		}
		if bestCand < 0 {
			break
		}

		fr := free[bestRect]
		placements = append(placements, Placement{
			Image:   cands[bestCand],
			X:       fr.x,
			Y:       fr.y,
			W:       bestW,
			H:       bestH,
			Class:   e.classify(cands[bestCand]),
			Stretch: true,
		})
		placed[bestCand] = true
		free = e.splitFreeRect(free, bestRect, bestW, bestH)
	}
	return placements, placed
}

// splitFreeRect consumes free[idx] after placing a w x h rectangle in its
// top-left corner, producing a right remainder and a bottom remainder, each
// shrunk by the gap on the cut side. Degenerate remainders are dropped and
// rectangles contained in another free rectangle are pruned.
func (e *Engine) splitFreeRect(free []freeRect, idx, w, h int) []freeRect {
	fr := free[idx]
	out := make([]freeRect, 0, len(free)+1)
	out = append(out, free[:idx]...)
	out = append(out, free[idx+1:]...)

	right := freeRect{x: fr.x + w + e.gap, y: fr.y, w: fr.w - w - e.gap, h: h}
	bottom := freeRect{x: fr.x, y: fr.y + h + e.gap, w: fr.w, h: fr.h - h - e.gap}
	if right.w > 0 && right.h > 0 {
		out = append(out, right)
	}
	if bottom.w > 0 && bottom.h > 0 {
		out = append(out, bottom)
	}

	pruned := make([]freeRect, 0, len(out))
	for i, r := range out {
		contained := false
		for j, o := range out {
			if i == j || !o.contains(r) {
				continue
			}
			// Keep the first of two identical rectangles.
			if r.contains(o) && j > i {
				continue
			}
			contained = true
			break
		}
		if !contained {
			pruned = append(pruned, r)
		}
	}
	return pruned
}

package layout

import (
	"encoding/json"
	"os"
)

// Metadata is the JSON sidecar written next to every document, capturing
// each placement for debugging and non-regression comparison.
type Metadata struct {
	DPI        int        `json:"dpi"`
	PageWidth  int        `json:"page_width"`
	PageHeight int        `json:"page_height"`
	Margin     int        `json:"margin"`
	Pages      []PageMeta `json:"pages"`
}

type PageMeta struct {
	Images []ImageMeta `json:"images"`
}

type ImageMeta struct {
	Ref        string `json:"ref"`
	OrigWidth  int    `json:"orig_width"`
	OrigHeight int    `json:"orig_height"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Class      string `json:"class"`
	Stretched  bool   `json:"stretched"`
}

func buildMetadata(doc *Document) Metadata {
	meta := Metadata{
		DPI:        doc.DPI,
		PageWidth:  doc.PageWidth,
		PageHeight: doc.PageHeight,
		Margin:     doc.Margin,
		Pages:      make([]PageMeta, 0, len(doc.Pages)),
	}
	for _, page := range doc.Pages {
		pm := PageMeta{Images: make([]ImageMeta, 0, len(page.Placements))}
		for _, p := range page.Placements {
			pm.Images = append(pm.Images, ImageMeta{
				Ref:        p.Image.Ref,
				OrigWidth:  p.Image.Width,
				OrigHeight: p.Image.Height,
				X:          p.X,
				Y:          p.Y,
				Width:      p.W,
				Height:     p.H,
				Class:      string(p.Class),
				Stretched:  p.Stretch,
			})
		}
		meta.Pages = append(meta.Pages, pm)
	}
	return meta
}

// WriteMetadata writes the sidecar JSON to path.
func WriteMetadata(meta Metadata, path string) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

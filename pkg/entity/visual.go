package entity

import "github.com/tidwall/gjson"

// Visual is the image the API selected to represent an entry.
// The API reports "none" as the URL when it found no image.
type Visual struct {
	URL          string
	Width        int
	Height       int
	ContentType  string
	Processor    string
	EdgeCacheURL string
}

// ParseVisual builds a Visual from a JSON node, or returns nil when the node is absent or null.
func ParseVisual(node gjson.Result) *Visual {
	if !present(node) {
		return nil
	}
	return &Visual{
		URL:          node.Get("url").String(),
		Width:        int(node.Get("width").Int()),
		Height:       int(node.Get("height").Int()),
		ContentType:  node.Get("contentType").String(),
		Processor:    node.Get("processor").String(),
		EdgeCacheURL: node.Get("edgeCacheUrl").String(),
	}
}

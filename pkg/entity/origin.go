package entity

import "github.com/tidwall/gjson"

// Origin is the feed an entry was crawled from.
type Origin struct {
	// StreamID is the feed stream id, e.g. "feed/http://example.com/rss". Read-only.
	StreamID string
	Title    string
	HTMLURL  string
}

// ParseOrigin builds an Origin from a JSON node, or returns nil when the node is absent or null.
func ParseOrigin(node gjson.Result) *Origin {
	if !present(node) {
		return nil
	}
	return &Origin{
		StreamID: node.Get("streamId").String(),
		Title:    node.Get("title").String(),
		HTMLURL:  node.Get("htmlUrl").String(),
	}
}

// ToParameters returns the write representation of the origin.
// The stream id is assigned by the server and is not sent back.
func (o *Origin) ToParameters() Parameters {
	return Parameters{
		"title":   o.Title,
		"htmlUrl": o.HTMLURL,
	}
}

package entity

import "github.com/tidwall/gjson"

// Content is a body of text (HTML) together with its writing direction ("ltr" or "rtl").
// It is used for both the full content and the summary of an entry.
type Content struct {
	Direction string
	Content   string
}

// ParseContent builds a Content from a JSON node.
// It returns nil when the node is absent or null. Missing sub-fields default to "".
func ParseContent(node gjson.Result) *Content {
	if !present(node) {
		return nil
	}
	return &Content{
		Direction: node.Get("direction").String(),
		Content:   node.Get("content").String(),
	}
}

// ToParameters returns the write representation of the content.
func (c *Content) ToParameters() Parameters {
	return Parameters{
		"direction": c.Direction,
		"content":   c.Content,
	}
}

// present reports whether a node exists and is not JSON null.
func present(node gjson.Result) bool {
	return node.Exists() && node.Type != gjson.Null
}

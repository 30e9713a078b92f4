package entity

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Tag is a user label that can be attached to entries.
// Tag ids have the form "user/{userId}/tag/{label}".
type Tag struct {
	ID          string
	Label       string
	Description string
}

// ParseTag builds a Tag from a JSON node.
func ParseTag(node gjson.Result) Tag {
	return Tag{
		ID:          node.Get("id").String(),
		Label:       node.Get("label").String(),
		Description: node.Get("description").String(),
	}
}

// ToParameters returns the write representation of the tag.
func (t Tag) ToParameters() Parameters {
	p := Parameters{"id": t.ID}
	if t.Label != "" {
		p["label"] = t.Label
	}
	return p
}

// IsGlobal reports whether the tag is a system tag such as "global.saved".
func (t Tag) IsGlobal() bool {
	return strings.Contains(t.ID, "/tag/global.")
}

// Category is a user collection of feeds.
// Category ids have the form "user/{userId}/category/{label}".
type Category struct {
	ID          string
	Label       string
	Description string
}

// ParseCategory builds a Category from a JSON node.
func ParseCategory(node gjson.Result) Category {
	return Category{
		ID:          node.Get("id").String(),
		Label:       node.Get("label").String(),
		Description: node.Get("description").String(),
	}
}

// IsGlobal reports whether the category is a system category such as "global.all".
func (c Category) IsGlobal() bool {
	return strings.Contains(c.ID, "/category/global.")
}

package entity

import "github.com/tidwall/gjson"

// Link is an alternate or enclosure link of an entry.
type Link struct {
	Href string
	// Type is the declared MIME type, e.g. "text/html" or "image/jpeg".
	Type string
	// Length is the enclosure size in bytes when the feed declares it.
	Length int64
}

// ParseLink builds a Link from a JSON node. Missing sub-fields take their zero value.
func ParseLink(node gjson.Result) Link {
	return Link{
		Href:   node.Get("href").String(),
		Type:   node.Get("type").String(),
		Length: node.Get("length").Int(),
	}
}

// ToParameters returns the write representation of the link.
func (l Link) ToParameters() Parameters {
	p := Parameters{
		"href": l.Href,
		"type": l.Type,
	}
	if l.Length != 0 {
		p["length"] = l.Length
	}
	return p
}

package entity

import (
	"net/url"
	"regexp"
	"strings"
)

// ThumbnailSource names where a resolved thumbnail came from.
type ThumbnailSource string

const (
	ThumbnailFromVisual    ThumbnailSource = "visual"
	ThumbnailFromEnclosure ThumbnailSource = "enclosure"
	ThumbnailFromContent   ThumbnailSource = "content"
	ThumbnailNone          ThumbnailSource = "none"
)

// imgSrcPattern finds the src attribute of an <img> tag. Only the first match in
// the body is considered; this is a heuristic, not an HTML parser.
var imgSrcPattern = regexp.MustCompile(`<img.*src\s*=\s*["'](.*?)["'].*>`)

// ThumbnailURL returns the best image URL for the entry, or nil when there is none.
func (e *Entry) ThumbnailURL() *url.URL {
	_, u := e.ThumbnailSource()
	return u
}

// ThumbnailSource resolves the entry thumbnail and reports which field it came from.
//
// Resolution order, first match wins:
//  1. the visual URL
//  2. the first enclosure with a valid href whose type contains "image"
//  3. the first <img src> in the HTML content
func (e *Entry) ThumbnailSource() (ThumbnailSource, *url.URL) {
	if e.Visual != nil {
		if u := parseWebURL(e.Visual.URL); u != nil {
			return ThumbnailFromVisual, u
		}
	}
	for _, link := range e.Enclosure {
		u := parseWebURL(link.Href)
		if u != nil && strings.Contains(link.Type, "image") {
			return ThumbnailFromEnclosure, u
		}
	}
	if u := e.extractImgSrc(); u != nil {
		return ThumbnailFromContent, u
	}
	return ThumbnailNone, nil
}

func (e *Entry) extractImgSrc() *url.URL {
	if e.Content == nil {
		return nil
	}
	match := imgSrcPattern.FindStringSubmatch(e.Content.Content)
	for _, group := range match {
		if u := parseWebURL(group); u != nil {
			return u
		}
	}
	return nil
}

// parseWebURL returns the parsed URL when raw is an absolute http(s) URL with a host.
func parseWebURL(raw string) *url.URL {
	if raw == "" || strings.ContainsAny(raw, " <>\"'") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	if u.Host == "" {
		return nil
	}
	return u
}

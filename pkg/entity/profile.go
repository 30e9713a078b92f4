package entity

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Profile is the authenticated user's account.
// Its id is the root of every user-scoped stream id (tags, categories, global streams).
type Profile struct {
	ID         string
	Email      string
	GivenName  string
	FamilyName string
	FullName   string
	Picture    string
	Locale     string
	Client     string
	Wave       string
	Created    int64
}

// ParseProfile builds a Profile from a raw JSON document.
// It returns a FieldError wrapping ErrMissingRequiredField when the id is absent.
func ParseProfile(raw []byte) (*Profile, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("parse profile: %w", ErrInvalidDocument)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("parse profile: %w", ErrInvalidDocument)
	}

	id := doc.Get("id").String()
	if id == "" {
		return nil, &FieldError{Field: "id", Err: ErrMissingRequiredField}
	}

	return &Profile{
		ID:         id,
		Email:      doc.Get("email").String(),
		GivenName:  doc.Get("givenName").String(),
		FamilyName: doc.Get("familyName").String(),
		FullName:   doc.Get("fullName").String(),
		Picture:    doc.Get("picture").String(),
		Locale:     doc.Get("locale").String(),
		Client:     doc.Get("client").String(),
		Wave:       doc.Get("wave").String(),
		Created:    doc.Get("created").Int(),
	}, nil
}

// TagID returns the stream id of the user's tag with the given label.
func (p *Profile) TagID(label string) string {
	return fmt.Sprintf("user/%s/tag/%s", p.ID, label)
}

// Tag returns a reference to the user's tag with the given label.
func (p *Profile) Tag(label string) Tag {
	return Tag{ID: p.TagID(label), Label: label}
}

// CategoryID returns the stream id of the user's category with the given label.
func (p *Profile) CategoryID(label string) string {
	return fmt.Sprintf("user/%s/category/%s", p.ID, label)
}

// Category returns a reference to the user's category with the given label.
func (p *Profile) Category(label string) Category {
	return Category{ID: p.CategoryID(label), Label: label}
}

// GlobalAllID is the stream of every entry from every subscription.
func (p *Profile) GlobalAllID() string {
	return p.CategoryID("global.all")
}

// GlobalSavedID is the stream of entries saved for later.
func (p *Profile) GlobalSavedID() string {
	return p.TagID("global.saved")
}

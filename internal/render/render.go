// Package render formats API models as plain text for the CLI.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"

	"feedlykit/pkg/entity"
)

// SummaryLength is the number of runes of summary text shown for an entry.
const SummaryLength = 280

var stripPolicy = bluemonday.StrictPolicy()

// PlainText removes every HTML tag from s, collapses whitespace and limits the
// result to max runes. max <= 0 means no limit.
func PlainText(s string, max int) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.Join(strings.Fields(s), " ")
	return Truncate(s, max)
}

// Truncate cuts s to at most max runes, ending with an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max-1]), " ") + "…"
}

// Timestamp formats epoch milliseconds in UTC, or "-" for zero.
func Timestamp(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Title returns the entry title, or its id when it has none.
func Title(e *entity.Entry) string {
	if e.Title == nil || strings.TrimSpace(*e.Title) == "" {
		return e.ID
	}
	return PlainText(*e.Title, 0)
}

// Link returns the first alternate href of the entry, or "".
func Link(e *entity.Entry) string {
	for _, l := range e.Alternate {
		if l.Href != "" {
			return l.Href
		}
	}
	return ""
}

// EntryLine writes a one-line listing of e: read marker, published time, title and source.
func EntryLine(w io.Writer, e *entity.Entry) error {
	marker := " "
	if e.Unread {
		marker = "*"
	}
	source := ""
	if e.Origin != nil && e.Origin.Title != "" {
		source = " (" + e.Origin.Title + ")"
	}
	_, err := fmt.Fprintf(w, "%s %s  %s%s\n", marker, Timestamp(e.Published), Title(e), source)
	return err
}

// Entries writes one EntryLine per entry.
func Entries(w io.Writer, entries []*entity.Entry) error {
	for _, e := range entries {
		if err := EntryLine(w, e); err != nil {
			return err
		}
	}
	return nil
}

// Entry writes the detailed view of e, including its resolved thumbnail.
func Entry(w io.Writer, e *entity.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}

	row("id", e.ID)
	row("title", Title(e))
	if e.Author != nil {
		row("author", *e.Author)
	}
	if e.Origin != nil {
		row("source", strings.TrimSpace(e.Origin.Title+" "+e.Origin.StreamID))
	}
	row("published", Timestamp(e.Published))
	row("link", Link(e))
	row("unread", fmt.Sprint(e.Unread))
	row("tags", strings.Join(lo.Map(e.Tags, func(t entity.Tag, _ int) string { return t.Label }), ", "))
	if len(e.Keywords) > 0 {
		row("keywords", strings.Join(e.Keywords, ", "))
	}

	source, thumb := e.ThumbnailSource()
	if thumb != nil {
		row("thumbnail", fmt.Sprintf("%s (from %s)", thumb, source))
	} else {
		row("thumbnail", string(entity.ThumbnailNone))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if body := summaryText(e); body != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", body)
		return err
	}
	return nil
}

// summaryText prefers the summary and falls back to the full content.
func summaryText(e *entity.Entry) string {
	for _, c := range []*entity.Content{e.Summary, e.Content} {
		if c == nil {
			continue
		}
		if text := PlainText(c.Content, SummaryLength); text != "" {
			return text
		}
	}
	return ""
}

// Tags writes a label/id table of tags.
func Tags(w io.Writer, tags []entity.Tag) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tID")
	for _, t := range tags {
		fmt.Fprintf(tw, "%s\t%s\n", t.Label, t.ID)
	}
	return tw.Flush()
}

// Profile writes the account fields of p.
func Profile(w io.Writer, p *entity.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", p.ID)
	if name := lo.Ternary(p.FullName != "", p.FullName, strings.TrimSpace(p.GivenName+" "+p.FamilyName)); name != "" {
		fmt.Fprintf(tw, "name:\t%s\n", name)
	}
	if p.Email != "" {
		fmt.Fprintf(tw, "email:\t%s\n", p.Email)
	}
	if p.Created != 0 {
		fmt.Fprintf(tw, "created:\t%s\n", Timestamp(p.Created))
	}
	fmt.Fprintf(tw, "all entries:\t%s\n", p.GlobalAllID())
	fmt.Fprintf(tw, "saved:\t%s\n", p.GlobalSavedID())
	return tw.Flush()
}

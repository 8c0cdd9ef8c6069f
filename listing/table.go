package listing

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Minimum widths of the kind, size and time columns. Size and time columns
// grow to fit their widest value; only names are ever truncated.
const (
	KindWidth = 6
	SizeWidth = 12
	TimeWidth = 20
)

const (
	headerName = "文件名"
	headerKind = "类型"
	headerSize = "大小"
	headerTime = "修改时间"
	ellipsis   = "..."
)

// East Asian ambiguous characters are narrow regardless of the locale.
var width = &runewidth.Condition{EastAsianWidth: false, StrictEmojiNeutral: true}

// Width returns the number of terminal columns s occupies.
func Width(s string) int {
	return width.StringWidth(s)
}

// Pad appends spaces to s until it is w columns wide.
func Pad(s string, w int) string {
	return width.FillRight(s, w)
}

// Truncate shortens s to at most w columns, ending it with "..." when
// anything was cut.
func Truncate(s string, w int) string {
	return width.Truncate(s, w, ellipsis)
}

// Table renders entries as an aligned table.
type Table struct {
	// NameWidth fixes the name column width. Zero sizes it to the widest name.
	NameWidth int
}

func (t Table) nameWidth(entries []Entry) int {
	if t.NameWidth > 0 {
		// Room for at least the ellipsis.
		return max(t.NameWidth, Width(ellipsis))
	}
	w := Width(headerName)
	for _, e := range entries {
		w = max(w, Width(e.Name))
	}
	return w
}

func columnWidth(minW int, entries []Entry, text func(Entry) string) int {
	w := minW
	for _, e := range entries {
		w = max(w, Width(text(e)))
	}
	return w
}

// Render writes the table for dir. Every header and entry row has the same
// display width.
func (t Table) Render(w io.Writer, dir string, entries []Entry) error {
	nameW := t.nameWidth(entries)
	sizeW := columnWidth(SizeWidth, entries, func(e Entry) string { return FormatSize(e.Size) })
	timeW := columnWidth(TimeWidth, entries, Entry.ModifiedText)
	total := nameW + KindWidth + sizeW + timeW + 3

	row := func(name, kind, size, modified string) string {
		return strings.Join([]string{
			Pad(Truncate(name, nameW), nameW),
			Pad(kind, KindWidth),
			Pad(size, sizeW),
			Pad(modified, timeW),
		}, " ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n📁 目录: %s\n", dir)
	b.WriteString(strings.Repeat("=", total) + "\n")
	b.WriteString(row(headerName, headerKind, headerSize, headerTime) + "\n")
	b.WriteString(strings.Repeat("-", total) + "\n")
	for _, e := range entries {
		b.WriteString(row(e.Name, e.Kind.Label(), FormatSize(e.Size), e.ModifiedText()) + "\n")
	}
	b.WriteString(strings.Repeat("=", total) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// EmptyMessage is shown instead of a table for a directory without entries.
func EmptyMessage(dir string) string {
	return fmt.Sprintf("📁 目录 %s 为空", dir)
}

// Format parses raw and renders it with a dynamic name column.
func Format(raw, dir string) string {
	entries := Parse(raw)
	if len(entries) == 0 {
		return EmptyMessage(dir) + "\n"
	}
	var b strings.Builder
	_ = Table{}.Render(&b, dir, entries)
	return b.String()
}

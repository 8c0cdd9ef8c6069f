// Package listing parses the raw directory listing reported by a backend and
// renders it as a table aligned by terminal display width.
package listing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the type of a listing entry.
type Kind int

const (
	File Kind = iota
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// Label is the kind as shown in the table.
func (k Kind) Label() string {
	if k == Directory {
		return "目录"
	}
	return "文件"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "file":
		*k = File
	case "directory":
		*k = Directory
	default:
		return fmt.Errorf("unknown kind %q", text)
	}
	return nil
}

// TimeLayout is the layout of the modification time in rows and in the table.
const TimeLayout = "2006-01-02 15:04:05"

// Entry is one parsed listing row.
type Entry struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Size uint64 `json:"size"`
	// ModifiedAt is zero when Modified could not be parsed.
	ModifiedAt time.Time `json:"modified_at,omitzero"`
	Modified   string    `json:"modified"`
	Hash       string    `json:"hash,omitempty"`
}

// ModifiedText is the modification time as displayed.
func (e Entry) ModifiedText() string {
	if e.ModifiedAt.IsZero() {
		return e.Modified
	}
	return e.ModifiedAt.Format(TimeLayout)
}

// Parse parses a raw listing. The first line is a header. Lines with too few
// fields for their kind are skipped, so a listing whose rows are all
// malformed yields no entries and is rendered as an empty directory.
func Parse(raw string) []Entry {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) < 2 {
		return nil
	}

	entries := make([]Entry, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if e, ok := parseLine(line); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func parseLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Entry{}, false
	}

	e := Entry{Kind: File}
	if fields[0] == "D" {
		e.Kind = Directory
	} else {
		if len(fields) < 6 {
			return Entry{}, false
		}
		e.Hash = fields[5]
	}

	e.Name = fields[1]
	if size, err := strconv.ParseUint(fields[2], 10, 64); err == nil {
		e.Size = size
	}
	e.Modified = strings.ReplaceAll(fields[3], ",", "") + " " + fields[4]
	if t, err := time.ParseInLocation(TimeLayout, e.Modified, time.Local); err == nil {
		e.ModifiedAt = t
	}
	return e, true
}

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// FormatSize renders a byte count as B, KB, MB or GB.
func FormatSize(size uint64) string {
	switch {
	case size >= gib:
		return fmt.Sprintf("%.2f GB", float64(size)/gib)
	case size >= mib:
		return fmt.Sprintf("%.2f MB", float64(size)/mib)
	case size >= kib:
		return fmt.Sprintf("%.2f KB", float64(size)/kib)
	default:
		return fmt.Sprintf("%d B", size)
	}
}

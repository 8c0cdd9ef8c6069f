package backend

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidPath is returned for a remote file path the server would reject.
var ErrInvalidPath = errors.New("invalid remote path")

// CheckRemotePath reports whether p names a remote file. A leading "/" is
// allowed; the rest must be a clean relative path:
//   - not empty and not ending with "/"
//   - no "..", "." or empty segments
//   - none of \ ? # ~
//   - valid UTF-8 without control characters or whitespace
func CheckRemotePath(p string) error {
	rel := strings.TrimPrefix(p, "/")
	if !validRelPath(rel) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return nil
}

func validRelPath(p string) bool {
	if p == "" || p == "." || p[0] == '/' {
		return false
	}

	if strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") || strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

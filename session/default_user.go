package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sagarc03/diskcli/vault"
)

// DefaultUserFileName is the name of the default-user pointer inside the
// diskcli home directory.
const DefaultUserFileName = "default_user"

// DefaultUser is the persisted name of the user to act as when no user is
// given explicitly.
type DefaultUser struct {
	path string
}

// NewDefaultUser returns the default-user pointer stored in baseDir.
func NewDefaultUser(baseDir string) *DefaultUser {
	return &DefaultUser{path: filepath.Join(baseDir, DefaultUserFileName)}
}

// Path returns the location of the pointer file.
func (d *DefaultUser) Path() string {
	return d.path
}

// Get returns the default user, or "" if none is set.
func (d *DefaultUser) Get() (string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read default user: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Set replaces the default user.
func (d *DefaultUser) Set(user string) error {
	if err := vault.ValidateUser(user); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o700); err != nil {
		return fmt.Errorf("create home directory: %w", err)
	}
	if err := os.WriteFile(d.path, []byte(user), 0o600); err != nil {
		return fmt.Errorf("write default user: %w", err)
	}
	return nil
}

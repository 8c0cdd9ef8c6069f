// Package vault stores per-user tokens encrypted with the installation key.
//
// Each user owns one directory under the base directory holding a single
// token.enc file. All file access goes through an os.Root so a user name can
// never address anything outside the base directory.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sagarc03/diskcli/keystore"
)

// TokenFileName is the name of the encrypted token inside a user directory.
const TokenFileName = "token.enc"

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// KeySource provides the installation key.
type KeySource interface {
	GetOrCreate() (*[keystore.KeySize]byte, error)
}

// Vault manages user directories and their encrypted tokens.
type Vault struct {
	root     *os.Root
	keys     KeySource
	logger   *slog.Logger
	validate *validator.Validate
}

// New creates a Vault on root. The root must be the base directory that also
// holds the key file; the Vault does not close it.
func New(root *os.Root, keys KeySource, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		root:     root,
		keys:     keys,
		logger:   logger,
		validate: validator.New(),
	}
}

// ValidateUser checks that user can be used as a directory name.
func (v *Vault) ValidateUser(user string) error {
	return validateUser(v.validate, user)
}

func validateUser(validate *validator.Validate, user string) error {
	if err := validate.Var(user, `required,max=64,excludesall=/\`); err != nil {
		return fmt.Errorf("%w %q", ErrInvalidUser, user)
	}
	// Covers "." and "..".
	if strings.HasPrefix(user, ".") {
		return fmt.Errorf("%w %q", ErrInvalidUser, user)
	}
	for _, r := range user {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w %q", ErrInvalidUser, user)
		}
	}
	return nil
}

// ValidateUser checks a user name without a Vault.
func ValidateUser(user string) error {
	return validateUser(validator.New(), user)
}

func tokenPath(user string) string {
	return path.Join(user, TokenFileName)
}

// EnsureUser creates the user's directory if it does not exist yet.
func (v *Vault) EnsureUser(user string) error {
	if err := v.ValidateUser(user); err != nil {
		return err
	}
	if err := v.root.MkdirAll(user, dirMode); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a token file exists for user. The token is
// neither decrypted nor checked for validity.
func (v *Vault) IsAuthenticated(user string) (bool, error) {
	if err := v.ValidateUser(user); err != nil {
		return false, err
	}
	_, err := v.root.Stat(tokenPath(user))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat token: %w", err)
}

// WriteToken encrypts tok and replaces the user's token file. The user
// directory is created first.
func (v *Vault) WriteToken(user string, tok Token) error {
	if err := v.EnsureUser(user); err != nil {
		return err
	}

	key, err := v.keys.GetOrCreate()
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	plaintext, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	sealed, err := seal(plaintext, key)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}

	if err := v.writeAtomic(tokenPath(user), sealed); err != nil {
		return err
	}

	v.logger.Debug("token written", "user", user)
	return nil
}

// writeAtomic writes data to a temp file next to name and renames it into
// place. The temp file is removed on every failure path.
func (v *Vault) writeAtomic(name string, data []byte) error {
	tmp := path.Join(path.Dir(name), tmpFileName())

	f, err := v.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			if rmErr := v.root.Remove(tmp); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				v.logger.Warn("failed to remove temp file", "path", tmp, "err", rmErr)
			}
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync token: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close token: %w", err)
	}

	if err := v.root.Rename(tmp, name); err != nil {
		return fmt.Errorf("rename token: %w", err)
	}

	success = true
	return nil
}

// ReadToken decrypts and returns the user's token. It returns
// ErrTokenNotFound if there is none and ErrCorruptToken if it cannot be
// decrypted or parsed.
func (v *Vault) ReadToken(user string) (Token, error) {
	if err := v.ValidateUser(user); err != nil {
		return Token{}, err
	}

	data, err := v.root.ReadFile(tokenPath(user))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Token{}, fmt.Errorf("%w for user %q", ErrTokenNotFound, user)
		}
		return Token{}, fmt.Errorf("read token: %w", err)
	}

	key, err := v.keys.GetOrCreate()
	if err != nil {
		return Token{}, fmt.Errorf("load key: %w", err)
	}

	plaintext, err := open(data, key)
	if err != nil {
		return Token{}, err
	}

	var tok Token
	if err := json.Unmarshal(plaintext, &tok); err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrCorruptToken, err)
	}
	return tok, nil
}

// DeleteToken removes the user's token file and leaves the directory in
// place. A missing token is not an error.
func (v *Vault) DeleteToken(user string) error {
	if err := v.ValidateUser(user); err != nil {
		return err
	}
	if err := v.root.Remove(tokenPath(user)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// ClearUser removes the user's token and, if the directory is then empty,
// the directory itself. removed reports whether a token existed. A non-nil
// error means an existing token could not be removed.
func (v *Vault) ClearUser(user string) (removed bool, err error) {
	if err := v.ValidateUser(user); err != nil {
		return false, err
	}

	exists, err := v.IsAuthenticated(user)
	if err != nil {
		return false, err
	}
	if !exists {
		v.logger.Debug("no token to clear", "user", user)
		return false, nil
	}

	if err := v.root.Remove(tokenPath(user)); err != nil {
		return false, fmt.Errorf("remove token: %w", err)
	}

	v.removeIfEmpty(user)
	return true, nil
}

func (v *Vault) removeIfEmpty(user string) {
	entries, err := fs.ReadDir(v.root.FS(), user)
	if err != nil {
		v.logger.Warn("failed to read user directory", "user", user, "err", err)
		return
	}
	if len(entries) > 0 {
		return
	}
	if err := v.root.Remove(user); err != nil {
		v.logger.Warn("failed to remove empty user directory", "user", user, "err", err)
	}
}

// Users returns every user directory under the base directory, sorted by
// name, with whether it holds a token.
func (v *Vault) Users() ([]UserState, error) {
	entries, err := fs.ReadDir(v.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("read base directory: %w", err)
	}

	var users []UserState
	for _, entry := range entries {
		if !entry.IsDir() || v.ValidateUser(entry.Name()) != nil {
			continue
		}
		authed, err := v.IsAuthenticated(entry.Name())
		if err != nil {
			return nil, err
		}
		users = append(users, UserState{Name: entry.Name(), Authenticated: authed})
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}

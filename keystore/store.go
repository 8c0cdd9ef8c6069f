// Package keystore manages the installation-wide symmetric key used to
// encrypt every user's token.
//
// The key is generated lazily on first use and persisted as raw bytes in a
// single file. There is exactly one key per installation; losing or replacing
// it makes every stored token unreadable.
package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// KeySize is the length of the key in bytes (NaCl secretbox key).
	KeySize = 32

	// FileName is the name of the key file inside the base directory.
	FileName = "key.bin"

	dirMode  = 0o700
	fileMode = 0o600
)

// ErrInvalidKey is returned when the persisted key file has the wrong length.
var ErrInvalidKey = errors.New("invalid key file")

// Store reads and creates the key file under a base directory.
type Store struct {
	baseDir  string
	openFile func(path string) (io.WriteCloser, error)
}

// New returns a Store rooted at baseDir. Nothing is touched on disk until
// GetOrCreate is called.
func New(baseDir string) *Store {
	return &Store{baseDir: filepath.Clean(baseDir), openFile: openExclusive}
}

// openExclusive creates path, failing if it exists. An existing key is never
// overwritten.
func openExclusive(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode) //#nosec G304 -- path is built from the configured home directory
}

// Path returns the location of the key file.
func (s *Store) Path() string {
	return filepath.Join(s.baseDir, FileName)
}

// GetOrCreate returns the persisted key, generating and writing a new one if
// the key file does not exist yet.
func (s *Store) GetOrCreate() (*[KeySize]byte, error) {
	key, err := s.load()
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s.create()
}

func (s *Store) load() (*[KeySize]byte, error) {
	data, err := os.ReadFile(s.Path()) //#nosec G304 -- path is built from the configured home directory
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrInvalidKey, s.Path(), len(data), KeySize)
	}

	var key [KeySize]byte
	copy(key[:], data)
	return &key, nil
}

func (s *Store) create() (*[KeySize]byte, error) {
	var key [KeySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	if err := os.MkdirAll(s.baseDir, dirMode); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	f, err := s.openFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return s.load()
		}
		return nil, fmt.Errorf("create key file: %w", err)
	}

	if _, err := f.Write(key[:]); err != nil {
		_ = f.Close()
		_ = os.Remove(s.Path())
		return nil, fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		// Never leave a partial key behind.
		_ = os.Remove(s.Path())
		return nil, fmt.Errorf("close key file: %w", err)
	}

	return &key, nil
}

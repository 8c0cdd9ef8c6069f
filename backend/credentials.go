package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CredentialsFileName is the name of the authorization artifact inside the
// diskcli home directory.
const CredentialsFileName = "auth.yaml"

// Errors for credential validation.
var (
	ErrAccessKeyRequired = errors.New("access key is required")
	ErrSecretKeyRequired = errors.New("secret key is required")
)

// Credentials is the access key pair stored in the authorization artifact.
type Credentials struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Validate checks that both keys are set.
func (c *Credentials) Validate() error {
	if c.AccessKey == "" {
		return ErrAccessKeyRequired
	}
	if c.SecretKey == "" {
		return ErrSecretKeyRequired
	}
	return nil
}

// Save writes the credentials to path with owner-only permissions.
// Creates the parent directory if it doesn't exist.
func (c *Credentials) Save(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}

// LoadCredentials reads the authorization artifact. It returns
// ErrNotAuthorized if the file does not exist.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is built from the configured home directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("credentials file %s: %w", path, err)
	}
	return &creds, nil
}

// RemoveCredentials deletes the authorization artifact.
func RemoveCredentials(path string) error {
	if err := os.Remove(filepath.Clean(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	return nil
}

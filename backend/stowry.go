package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sagarc03/stowry-go"
)

const (
	// DefaultEndpoint is the default Stowry server URL.
	DefaultEndpoint = "http://localhost:5708"

	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultExpires is the default presigned URL expiry in seconds (15 minutes).
	DefaultExpires = 900

	listPageSize = 1000

	// listingTimeLayout is the date/time layout of listing rows.
	listingTimeLayout = "2006-01-02, 15:04:05"
)

// PromptFunc asks the user for credentials during Authorize.
type PromptFunc func(ctx context.Context) (Credentials, error)

// StowryConfig configures a Stowry client.
type StowryConfig struct {
	Endpoint        string
	CredentialsPath string
	Timeout         time.Duration
}

// Stowry is a Client for a Stowry object storage server. Credentials are
// read from the authorization artifact at CredentialsPath.
type Stowry struct {
	endpoint        string
	credentialsPath string
	httpClient      *http.Client
	prompt          PromptFunc
	logger          *slog.Logger

	creds  *Credentials
	signer *stowry.Client
}

// Option configures a Stowry client.
type Option func(*Stowry)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Stowry) {
		s.httpClient = client
	}
}

// WithPrompt sets the function Authorize uses to ask for credentials.
func WithPrompt(prompt PromptFunc) Option {
	return func(s *Stowry) {
		s.prompt = prompt
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stowry) {
		s.logger = logger
	}
}

// NewStowry creates a Stowry client. Credentials are loaded lazily on the
// first request.
func NewStowry(cfg StowryConfig, opts ...Option) (*Stowry, error) {
	if cfg.CredentialsPath == "" {
		return nil, errors.New("credentials path is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Stowry{
		endpoint:        strings.TrimSuffix(endpoint, "/"),
		credentialsPath: cfg.CredentialsPath,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Authorize asks for credentials, stores them in the authorization artifact
// and uses them for subsequent requests.
func (s *Stowry) Authorize(ctx context.Context) error {
	if s.prompt == nil {
		return errors.New("authorize: no credential prompt configured")
	}

	creds, err := s.prompt(ctx)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	if err := creds.Save(s.credentialsPath); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}

	s.setCredentials(&creds)
	s.logger.Debug("stowry credentials saved", "path", s.credentialsPath)
	return nil
}

// ClearAuthorization removes the authorization artifact.
func (s *Stowry) ClearAuthorization() error {
	s.creds = nil
	s.signer = nil
	return RemoveCredentials(s.credentialsPath)
}

func (s *Stowry) setCredentials(creds *Credentials) {
	s.creds = creds
	s.signer = stowry.NewClient(s.endpoint, creds.AccessKey, creds.SecretKey)
}

func (s *Stowry) ensureSigner() error {
	if s.signer != nil {
		return nil
	}
	creds, err := LoadCredentials(s.credentialsPath)
	if err != nil {
		return err
	}
	s.setCredentials(creds)
	return nil
}

// Upload uploads a single local file to remotePath.
func (s *Stowry) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := CheckRemotePath(remotePath); err != nil {
		return err
	}
	if err := s.ensureSigner(); err != nil {
		return err
	}

	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	remotePath = normalizePath(remotePath)
	presignURL := s.signer.PresignPut(remotePath, DefaultExpires)

	// Streams the file as the body, no memory copy.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignURL, file)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", detectContentType(localPath))
	req.ContentLength = info.Size()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return parseServerError("upload", resp.StatusCode, body)
	}

	s.logger.Debug("uploaded", "local", localPath, "remote", remotePath, "size", info.Size())
	return nil
}

// Download downloads remotePath into localPath, creating parent
// directories as needed.
func (s *Stowry) Download(ctx context.Context, remotePath, localPath string) error {
	if err := CheckRemotePath(remotePath); err != nil {
		return err
	}
	if err := s.ensureSigner(); err != nil {
		return err
	}

	remotePath = normalizePath(remotePath)
	presignURL := s.signer.PresignGet(remotePath, DefaultExpires)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presignURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return parseServerError("download", resp.StatusCode, body)
	}

	if dir := filepath.Dir(localPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	file, err := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	written, copyErr := io.Copy(file, resp.Body)
	if copyErr != nil {
		_ = file.Close()
		return fmt.Errorf("write file: %w", copyErr)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	s.logger.Debug("downloaded", "remote", remotePath, "local", localPath, "size", written)
	return nil
}

// List returns the raw listing of dir. Objects nested deeper than one level
// are folded into directory rows.
func (s *Stowry) List(ctx context.Context, dir string) (string, error) {
	if err := s.ensureSigner(); err != nil {
		return "", err
	}

	dir = normalizeDir(dir)
	prefix := strings.TrimPrefix(dir, "/")
	if prefix != "" {
		prefix += "/"
	}

	items, err := s.listAll(ctx, prefix)
	if err != nil {
		return "", err
	}

	return renderListing(dir, prefix, items, s.logger), nil
}

// listAll fetches all pages of objects under prefix.
func (s *Stowry) listAll(ctx context.Context, prefix string) ([]objectInfo, error) {
	var all []objectInfo
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := s.listPage(ctx, prefix, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

func (s *Stowry) listPage(ctx context.Context, prefix, cursor string) (*listResult, error) {
	presignURL := s.presignList(prefix, listPageSize, cursor, DefaultExpires)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presignURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseServerError("list", resp.StatusCode, body)
	}

	var result listResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &result, nil
}

// presignList generates a presigned URL for list operations.
// stowry-go has no PresignList, so the query is built by hand.
func (s *Stowry) presignList(prefix string, limit int, cursor string, expires int) string {
	timestamp := time.Now().Unix()
	path := "/"
	sig := stowry.Sign(s.creds.SecretKey, http.MethodGet, path, timestamp, int64(expires))

	query := url.Values{}
	query.Set(stowry.StowryCredentialParam, s.creds.AccessKey)
	query.Set(stowry.StowryDateParam, strconv.FormatInt(timestamp, 10))
	query.Set(stowry.StowryExpiresParam, strconv.Itoa(expires))
	query.Set(stowry.StowrySignatureParam, sig)

	if prefix != "" {
		query.Set("prefix", prefix)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	return s.endpoint + path + "?" + query.Encode()
}

// objectInfo mirrors one object in the server's list response.
type objectInfo struct {
	Path          string    `json:"path"`
	ETag          string    `json:"etag"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// listResult mirrors the server's list response.
type listResult struct {
	Items      []objectInfo `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// renderListing turns a flat object list into the raw listing format.
func renderListing(dir, prefix string, items []objectInfo, logger *slog.Logger) string {
	dirs := make(map[string]time.Time)
	var files []objectInfo

	for _, item := range items {
		rel := strings.TrimPrefix(item.Path, prefix)
		if rel == "" || rel == item.Path && prefix != "" {
			continue
		}
		name, _, nested := strings.Cut(rel, "/")
		// Rows are whitespace separated, so such names cannot be listed.
		if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			logger.Debug("skipping listing entry with whitespace in its name", "path", item.Path)
			continue
		}
		if nested {
			if item.UpdatedAt.After(dirs[name]) {
				dirs[name] = item.UpdatedAt
			}
			continue
		}
		item.Path = rel
		files = append(files, item)
	}

	dirNames := make([]string, 0, len(dirs))
	for name := range dirs {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var b strings.Builder
	fmt.Fprintf(&b, "%s ($t $f $s $m $d):\n", dir)
	for _, name := range dirNames {
		fmt.Fprintf(&b, "D %s 0 %s\n", name, dirs[name].Local().Format(listingTimeLayout))
	}
	for _, f := range files {
		fmt.Fprintf(&b, "F %s %d %s %s\n", f.Path, f.FileSizeBytes, f.UpdatedAt.Local().Format(listingTimeLayout), f.ETag)
	}
	return b.String()
}

// normalizePath ensures path has leading slash and no trailing slash.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(path, "/")
}

// normalizeDir is normalizePath for directories, keeping "/" for the root.
func normalizeDir(dir string) string {
	dir = normalizePath(strings.TrimSpace(dir))
	if dir == "" {
		return "/"
	}
	return dir
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

// parseServerError wraps a non-success response.
func parseServerError(op string, statusCode int, body []byte) error {
	return &StatusError{
		Op:   op,
		Code: statusCode,
		Body: strings.TrimSpace(string(body)),
	}
}

// Package backendtest provides a scripted in-memory backend.Client for tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/sagarc03/diskcli/backend"
)

// Call records one invocation of a Fake method.
type Call struct {
	Method string
	Args   []string
}

// Fake is a backend.Client and backend.Authorizer whose results are set by
// the test. The zero value lists an empty root and succeeds everywhere.
type Fake struct {
	mu sync.Mutex

	// ListText is returned by List when ListFunc is nil.
	ListText string
	// ListFunc overrides List when set.
	ListFunc func(dir string) (string, error)

	AuthorizeErr error
	ListErr      error
	UploadErr    error
	DownloadErr  error
	ClearErr     error

	calls       []Call
	clearCount  int
	authorizeOK int
}

var (
	_ backend.Client     = (*Fake)(nil)
	_ backend.Authorizer = (*Fake)(nil)
)

func (f *Fake) record(method string, args ...string) {
	f.calls = append(f.calls, Call{Method: method, Args: args})
}

// Authorize implements backend.Client.
func (f *Fake) Authorize(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("Authorize")
	if f.AuthorizeErr != nil {
		return f.AuthorizeErr
	}
	f.authorizeOK++
	return nil
}

// List implements backend.Client.
func (f *Fake) List(_ context.Context, dir string) (string, error) {
	f.mu.Lock()
	f.record("List", dir)
	listFunc, text, err := f.ListFunc, f.ListText, f.ListErr
	f.mu.Unlock()

	if listFunc != nil {
		return listFunc(dir)
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		return dir + " ($t $f $s $m $d):\n", nil
	}
	return text, nil
}

// Upload implements backend.Client.
func (f *Fake) Upload(_ context.Context, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("Upload", localPath, remotePath)
	return f.UploadErr
}

// Download implements backend.Client.
func (f *Fake) Download(_ context.Context, remotePath, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("Download", remotePath, localPath)
	return f.DownloadErr
}

// ClearAuthorization implements backend.Authorizer.
func (f *Fake) ClearAuthorization() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ClearAuthorization")
	f.clearCount++
	return f.ClearErr
}

// Calls returns a copy of the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Methods returns the names of the recorded calls in order.
func (f *Fake) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

// ClearCount returns how many times ClearAuthorization was called.
func (f *Fake) ClearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearCount
}

// Authorized reports whether Authorize has succeeded at least once.
func (f *Fake) Authorized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorizeOK > 0
}

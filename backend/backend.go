// Package backend defines the remote storage collaborator used by diskcli and
// provides an implementation backed by a Stowry object storage server.
//
// The rest of diskcli depends only on the Client interface. A backend reports
// a directory listing as raw text, one entry per line after a header line:
//
//	/docs ($t $f $s $m $d):
//	D reports 0 2024-01-02, 03:04:05
//	F a.txt 100 2024-01-02, 03:04:05 abcd1234
//
// The listing package parses that format.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Client is a remote storage account.
type Client interface {
	// Authorize obtains fresh authorization for the account.
	Authorize(ctx context.Context) error

	// List returns the raw listing of a remote directory.
	List(ctx context.Context, dir string) (string, error)

	// Upload copies a local file to a remote path.
	Upload(ctx context.Context, localPath, remotePath string) error

	// Download copies a remote file to a local path.
	Download(ctx context.Context, remotePath, localPath string) error
}

// Authorizer is implemented by clients that keep a global authorization
// artifact outside of diskcli's own token store.
type Authorizer interface {
	// ClearAuthorization removes the artifact so that the next Authorize
	// starts from scratch. A missing artifact is not an error.
	ClearAuthorization() error
}

// ErrNotAuthorized is returned when an operation needs credentials that have
// not been provided yet.
var ErrNotAuthorized = errors.New("backend is not authorized")

// StatusError is a non-zero status reported by the backend.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s failed with status %d", e.Op, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Code returns the backend status code carried by err, if any.
func Code(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrFileSystem is returned when the filesystem round trip fails.
	ErrFileSystem = errors.New("filesystem round trip failed")

	// ErrTransfer is returned for transport failures and non-2xx responses.
	ErrTransfer = errors.New("transfer failed")

	// ErrAbort is returned when the request was cancelled by the caller.
	ErrAbort = errors.New("upload aborted")
)

// TransferError is a completed transfer whose response code is outside
// [200,300).
type TransferError struct {
	Strategy   Strategy
	StatusCode int
	Body       string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s upload failed with status %d", e.Strategy, e.StatusCode)
}

// Unwrap lets errors.Is match ErrTransfer.
func (e *TransferError) Unwrap() error { return ErrTransfer }

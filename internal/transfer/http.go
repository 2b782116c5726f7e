package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/thanhleviet/ena-dl/internal/ena"
	enahttp "github.com/thanhleviet/ena-dl/internal/http"
)

// TransferError reports an adapter-level failure.
type TransferError struct {
	Protocol Protocol
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer: %s: %v", e.Protocol, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// HTTPAdapter downloads files over HTTP(S) with Range resume.
type HTTPAdapter struct {
	client *enahttp.Client
}

// NewHTTPAdapter creates an adapter on top of the given client options.
func NewHTTPAdapter(opts enahttp.Options) *HTTPAdapter {
	return &HTTPAdapter{client: enahttp.NewClient(opts)}
}

// Fetch downloads entry.HTTPURL to dest, resuming from the size of any
// partial file already present. It streams to disk and returns the total
// byte count of the local file on success.
func (a *HTTPAdapter) Fetch(ctx context.Context, entry ena.FileEntry, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, &TransferError{Protocol: ProtocolHTTP, Err: err}
	}

	var offset int64
	if fi, err := os.Stat(dest); err == nil {
		offset = fi.Size()
	}

	// A partial file at least as large as the expected size will never be
	// satisfiable as a range; hand it straight to verification.
	if entry.Size > 0 && offset >= entry.Size {
		return offset, nil
	}

	resp, err := a.client.GetFrom(ctx, entry.HTTPURL, offset)
	if errors.Is(err, enahttp.ErrRangeUnsatisfiable) {
		return offset, nil
	}
	if err != nil {
		return 0, &TransferError{Protocol: ProtocolHTTP, Err: err}
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 && !resp.Resumed {
		// Server ignored the range; restart from scratch.
		offset = 0
		flags |= os.O_TRUNC
	} else if offset > 0 {
		flags |= os.O_APPEND
	}

	f, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return 0, &TransferError{Protocol: ProtocolHTTP, Err: err}
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Keep the partial file so a rerun can resume it.
		return offset + n, &TransferError{Protocol: ProtocolHTTP, Err: err}
	}

	return offset + n, nil
}

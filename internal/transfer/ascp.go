package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/thanhleviet/ena-dl/internal/config"
	"github.com/thanhleviet/ena-dl/internal/ena"
)

// asperaUser is the account ENA exposes for fasp transfers.
const asperaUser = "era-fasp"

// AscpAdapter runs the external ascp client for accelerated transfers.
type AscpAdapter struct {
	cfg config.AsperaConfig
}

// NewAscpAdapter creates an adapter around the configured ascp client.
func NewAscpAdapter(cfg config.AsperaConfig) *AscpAdapter {
	return &AscpAdapter{cfg: cfg}
}

// Available reports whether the client binary and private key can both
// be found. Used by auto-mode dispatch to decide on HTTP fallback.
func (a *AscpAdapter) Available() bool {
	if a.cfg.KeyPath == "" {
		return false
	}
	if _, err := os.Stat(a.cfg.KeyPath); err != nil {
		return false
	}
	_, err := exec.LookPath(a.cfg.Binary)
	return err == nil
}

// Fetch transfers entry.AsperaURL into the directory of dest by invoking
// ascp and waiting for it to exit. The client's own resume support (-k 1)
// restarts partial transfers in place, so re-invoking with the same
// destination resumes rather than redownloads. Cancelling the context
// kills the external process.
func (a *AscpAdapter) Fetch(ctx context.Context, entry ena.FileEntry, dest string) (int64, error) {
	if entry.AsperaURL == "" {
		return 0, &TransferError{Protocol: ProtocolAspera, Err: fmt.Errorf("no aspera source for %s", entry.Name)}
	}

	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, &TransferError{Protocol: ProtocolAspera, Err: err}
	}

	args := []string{
		"-q", // no interactive progress, we report our own
		"-Q", // fair bandwidth policy
		"-k", "1", // resume partial transfers
		"-c", "aes128", // encrypt in transit, independent of client defaults
		"-l", a.cfg.RateLimit,
		"-P", strconv.Itoa(a.cfg.Port),
		"-i", a.cfg.KeyPath,
		asperaUser + "@" + entry.AsperaURL,
		destDir,
	}

	cmd := exec.CommandContext(ctx, a.cfg.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, &TransferError{Protocol: ProtocolAspera, Err: ctx.Err()}
		}
		detail := firstLine(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return 0, &TransferError{Protocol: ProtocolAspera, Err: fmt.Errorf("ascp: %w", err)}
	}

	fi, err := os.Stat(dest)
	if err != nil {
		return 0, &TransferError{Protocol: ProtocolAspera, Err: fmt.Errorf("ascp reported success but %s is missing: %w", dest, err)}
	}
	return fi.Size(), nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

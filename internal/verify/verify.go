// Package verify checks downloaded files against archive metadata.
package verify

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/thanhleviet/ena-dl/internal/ena"
)

// IntegrityError reports a size or checksum mismatch after a transfer.
type IntegrityError struct {
	Path     string
	Field    string // "size" or "md5"
	Expected string
	Actual   string

	// Resumable is true only for a file shorter than expected, which a
	// Range resume can still complete. Oversized or corrupt files must
	// be cleared before another attempt.
	Resumable bool
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("verify: %s: %s mismatch: expected %s, got %s", e.Path, e.Field, e.Expected, e.Actual)
}

// File compares the file at path against the entry's expected size and
// md5 digest. The size is checked first so a file that is obviously
// still partial fails without paying for a full checksum pass.
func File(path string, entry ena.FileEntry) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if fi.Size() != entry.Size {
		return &IntegrityError{
			Path:      path,
			Field:     "size",
			Expected:  fmt.Sprintf("%d", entry.Size),
			Actual:    fmt.Sprintf("%d", fi.Size()),
			Resumable: fi.Size() < entry.Size,
		}
	}

	digest, err := md5sum(path)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if digest != entry.MD5 {
		return &IntegrityError{
			Path:     path,
			Field:    "md5",
			Expected: entry.MD5,
			Actual:   digest,
		}
	}

	return nil
}

// md5sum computes the hex md5 digest of a file, streaming so that
// multi-gigabyte archives are never held in memory.
func md5sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Package archive mirrors verified downloads into object storage.
//
// Buckets are addressed by gocloud URL (s3://, gs://, file://, mem://),
// so the same code serves cloud mirrors and local staging directories.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"gocloud.dev/blob"
)

// Mirror uploads each local file to the bucket under its base name.
// Files already present with a matching size are skipped, so mirroring
// is idempotent across reruns.
func Mirror(ctx context.Context, bucketURL string, paths []string) error {
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("archive: open bucket: %w", err)
	}
	defer bkt.Close()

	for _, p := range paths {
		if err := upload(ctx, bkt, p); err != nil {
			return err
		}
	}
	return nil
}

func upload(ctx context.Context, bkt *blob.Bucket, localPath string) error {
	fi, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	key := path.Base(localPath)
	if attrs, err := bkt.Attributes(ctx, key); err == nil && attrs.Size == fi.Size() {
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	defer f.Close()

	w, err := bkt.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("archive: open writer for %s: %w", key, err)
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("archive: upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: finalize %s: %w", key, err)
	}
	return nil
}

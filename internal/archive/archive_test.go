package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
)

func TestMirrorUploads(t *testing.T) {
	srcDir := t.TempDir()
	bucketDir := t.TempDir()
	bucketURL := "file://" + bucketDir

	local := filepath.Join(srcDir, "SRR000001.fastq.gz")
	if err := os.WriteFile(local, []byte("fastq payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	ctx := context.Background()
	if err := Mirror(ctx, bucketURL, []string{local}); err != nil {
		t.Fatalf("Mirror: %v", err)
	}

	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bkt.Close()

	data, err := bkt.ReadAll(ctx, "SRR000001.fastq.gz")
	if err != nil {
		t.Fatalf("read mirrored object: %v", err)
	}
	if string(data) != "fastq payload" {
		t.Errorf("unexpected object content %q", data)
	}
}

func TestMirrorSkipsExisting(t *testing.T) {
	srcDir := t.TempDir()
	bucketDir := t.TempDir()
	bucketURL := "file://" + bucketDir

	local := filepath.Join(srcDir, "SRR000001.fastq.gz")
	if err := os.WriteFile(local, []byte("stable bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	ctx := context.Background()
	if err := Mirror(ctx, bucketURL, []string{local}); err != nil {
		t.Fatalf("first Mirror: %v", err)
	}

	objPath := filepath.Join(bucketDir, "SRR000001.fastq.gz")
	first, err := os.Stat(objPath)
	if err != nil {
		t.Fatalf("stat mirrored object: %v", err)
	}

	if err := Mirror(ctx, bucketURL, []string{local}); err != nil {
		t.Fatalf("second Mirror: %v", err)
	}

	second, err := os.Stat(objPath)
	if err != nil {
		t.Fatalf("stat mirrored object again: %v", err)
	}
	if !second.ModTime().Equal(first.ModTime()) {
		t.Error("unchanged object should not be re-uploaded")
	}
}

func TestMirrorMissingLocalFile(t *testing.T) {
	bucketURL := "file://" + t.TempDir()
	err := Mirror(context.Background(), bucketURL, []string{filepath.Join(t.TempDir(), "absent.gz")})
	if err == nil {
		t.Fatal("expected error for missing local file")
	}
}

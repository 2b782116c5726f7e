//go:build integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thanhleviet/ena-dl/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	files := []testutils.ArchiveFile{
		{Run: "SRR000001", Name: "SRR000001_1.fastq.gz", Data: []byte("r1 reads for run one\n")},
		{Run: "SRR000001", Name: "SRR000001_2.fastq.gz", Data: []byte("r2 reads for run one\n")},
		{Run: "SRR000002", Name: "SRR000002.fastq.gz", Data: []byte("single-end reads for run two\n")},
	}

	t.Log("Starting archive test server...")
	server := testutils.StartArchiveServer(t, files)
	t.Setenv("ENADL_ENA_URL", server.URL+"/search")

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "ena-dl-test-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	outDir := t.TempDir()

	t.Run("download", func(t *testing.T) {
		exitCode := run([]string{
			"-mode", "http",
			"-output-dir", outDir,
			"-workers", "2",
			"-bucket", minio.BucketURL,
			"SRR000001", "SRR000002",
		})
		if exitCode != ExitSuccess {
			t.Fatalf("download failed with exit code %d", exitCode)
		}

		for _, f := range files {
			data, err := os.ReadFile(filepath.Join(outDir, f.Name))
			if err != nil {
				t.Fatalf("read %s: %v", f.Name, err)
			}
			if string(data) != string(f.Data) {
				t.Errorf("%s: content mismatch", f.Name)
			}
		}

		if _, err := os.Stat(filepath.Join(outDir, "ena-run-info.json")); err != nil {
			t.Errorf("missing run info: %v", err)
		}
	})

	t.Run("mirrored", func(t *testing.T) {
		bkt, err := minio.OpenBucket(ctx)
		if err != nil {
			t.Fatalf("open bucket: %v", err)
		}
		defer bkt.Close()

		for _, f := range files {
			data, err := bkt.ReadAll(ctx, f.Name)
			if err != nil {
				t.Fatalf("read mirrored %s: %v", f.Name, err)
			}
			if string(data) != string(f.Data) {
				t.Errorf("%s: mirrored content mismatch", f.Name)
			}
		}
	})

	t.Run("rerun_skips_verified", func(t *testing.T) {
		exitCode := run([]string{
			"-mode", "http",
			"-output-dir", outDir,
			"-quiet",
			"SRR000001", "SRR000002",
		})
		if exitCode != ExitSuccess {
			t.Fatalf("rerun failed with exit code %d", exitCode)
		}
	})

	t.Run("unknown_accession", func(t *testing.T) {
		exitCode := run([]string{
			"-mode", "http",
			"-output-dir", t.TempDir(),
			"-quiet",
			"SRR999999",
		})
		if exitCode != ExitTransferFailed {
			t.Fatalf("expected exit %d for unknown accession, got %d", ExitTransferFailed, exitCode)
		}
	})
}

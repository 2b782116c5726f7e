package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/thanhleviet/ena-dl/internal/ena"
	enahttp "github.com/thanhleviet/ena-dl/internal/http"
)

func fastHTTPOptions() enahttp.Options {
	opts := enahttp.DefaultOptions()
	opts.RetryAttempts = 1
	opts.RetryBackoff = time.Millisecond
	return opts
}

// rangeServer serves data with proper Range support, recording the last
// Range header it saw.
func rangeServer(t *testing.T, data []byte, lastRange *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if lastRange != nil {
			*lastRange = rangeHeader
		}
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Write(data)
			return
		}

		offsetStr := strings.TrimSuffix(strings.TrimPrefix(rangeHeader, "bytes="), "-")
		offset, _ := strconv.ParseInt(offsetStr, 10, 64)
		if offset >= int64(len(data)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(data)-1, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[offset:])
	}))
	t.Cleanup(server.Close)
	return server
}

func entryFor(url string, data []byte) ena.FileEntry {
	sum := md5.Sum(data)
	return ena.FileEntry{
		Run:     "SRR000001",
		Name:    "SRR000001.fastq.gz",
		Size:    int64(len(data)),
		MD5:     hex.EncodeToString(sum[:]),
		HTTPURL: url,
	}
}

func TestHTTPFetchFresh(t *testing.T) {
	data := []byte("complete fastq payload for a fresh download")
	server := rangeServer(t, data, nil)

	dest := filepath.Join(t.TempDir(), "SRR000001.fastq.gz")
	adapter := NewHTTPAdapter(fastHTTPOptions())

	n, err := adapter.Fetch(context.Background(), entryFor(server.URL, data), dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("expected %d bytes, got %d", len(data), n)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != string(data) {
		t.Error("downloaded content differs from source")
	}
}

func TestHTTPFetchResumesFromPartial(t *testing.T) {
	data := []byte("0123456789abcdefghijklmnopqrstuvwxyz resume test")
	var sawRange string
	server := rangeServer(t, data, &sawRange)

	dest := filepath.Join(t.TempDir(), "SRR000001.fastq.gz")
	if err := os.WriteFile(dest, data[:17], 0o644); err != nil {
		t.Fatalf("seed partial file: %v", err)
	}

	adapter := NewHTTPAdapter(fastHTTPOptions())
	n, err := adapter.Fetch(context.Background(), entryFor(server.URL, data), dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if sawRange != "bytes=17-" {
		t.Errorf("expected resume request from byte 17, got %q", sawRange)
	}
	if n != int64(len(data)) {
		t.Errorf("expected %d total bytes, got %d", len(data), n)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != string(data) {
		t.Error("resumed file differs from source")
	}
}

func TestHTTPFetchRestartsWhenRangeIgnored(t *testing.T) {
	data := []byte("server ignores ranges entirely")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "SRR000001.fastq.gz")
	if err := os.WriteFile(dest, []byte("stale partial bytes"), 0o644); err != nil {
		t.Fatalf("seed partial file: %v", err)
	}

	adapter := NewHTTPAdapter(fastHTTPOptions())
	n, err := adapter.Fetch(context.Background(), entryFor(server.URL, data), dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("expected %d bytes, got %d", len(data), n)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != string(data) {
		t.Error("restart did not replace stale content")
	}
}

func TestHTTPFetchAlreadyComplete(t *testing.T) {
	data := []byte("already complete file")
	server := rangeServer(t, data, nil)

	dest := filepath.Join(t.TempDir(), "SRR000001.fastq.gz")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	adapter := NewHTTPAdapter(fastHTTPOptions())
	n, err := adapter.Fetch(context.Background(), entryFor(server.URL, data), dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("expected %d bytes, got %d", len(data), n)
	}
}

func TestHTTPFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "missing.fastq.gz")
	adapter := NewHTTPAdapter(fastHTTPOptions())

	_, err := adapter.Fetch(context.Background(), ena.FileEntry{Name: "missing.fastq.gz", Size: 10, HTTPURL: server.URL}, dest)
	var terr *TransferError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransferError, got %T: %v", err, err)
	}
	if terr.Protocol != ProtocolHTTP {
		t.Errorf("expected http protocol in error, got %s", terr.Protocol)
	}
}

//go:build integration

// Package testutils provides shared infrastructure for integration tests.
package testutils

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
)

// ArchiveFile is one downloadable run file served by the fake archive.
type ArchiveFile struct {
	Run  string
	Name string
	Data []byte
}

// MD5 returns the hex digest of the file data.
func (f ArchiveFile) MD5() string {
	sum := md5.Sum(f.Data)
	return hex.EncodeToString(sum[:])
}

// StartArchiveServer serves a warehouse-style report under /search and the
// run files themselves under /files/, with range request support so resume
// paths can be exercised end to end.
func StartArchiveServer(t *testing.T, files []ArchiveFile) *httptest.Server {
	t.Helper()

	byPath := make(map[string]ArchiveFile)
	for _, f := range files {
		byPath["/files/"+f.Name] = f
	}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/search") {
			writeReport(w, srv.URL, files)
			return
		}

		f, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		serveRange(w, r, f.Data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeReport renders the tab-separated report the resolver expects.
// Explicit http:// URLs keep transfers on the test server instead of
// the https upgrade applied to live scheme-less values.
func writeReport(w http.ResponseWriter, baseURL string, files []ArchiveFile) {
	byRun := make(map[string][]ArchiveFile)
	var runs []string
	for _, f := range files {
		if len(byRun[f.Run]) == 0 {
			runs = append(runs, f.Run)
		}
		byRun[f.Run] = append(byRun[f.Run], f)
	}

	fmt.Fprintln(w, "run_accession\texperiment_accession\tsample_accession\tstudy_accession\tlibrary_layout\tfastq_bytes\tfastq_md5\tfastq_ftp\tfastq_aspera")
	for _, run := range runs {
		var sizes, md5s, ftps []string
		for _, f := range byRun[run] {
			sizes = append(sizes, strconv.Itoa(len(f.Data)))
			md5s = append(md5s, f.MD5())
			ftps = append(ftps, baseURL+"/files/"+f.Name)
		}
		fmt.Fprintf(w, "%s\t%sX\t%sS\tPRJ%s\tSINGLE\t%s\t%s\t%s\t\n",
			run, run, run, run,
			strings.Join(sizes, ";"),
			strings.Join(md5s, ";"),
			strings.Join(ftps, ";"),
		)
	}
}

func serveRange(w http.ResponseWriter, r *http.Request, data []byte) {
	size := int64(len(data))

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Write(data)
		return
	}

	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(rangeHeader, "-", 2)
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end := size - 1
	if len(parts) == 2 && parts[1] != "" {
		end, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	if start >= size {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if end >= size {
		end = size - 1
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

// MinioEnv holds connection details for a Minio-backed bucket mirror.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Close terminates the Minio container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// OpenBucket opens a gocloud bucket connection to the Minio environment.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts a Minio container with a pre-created bucket
// so mirror tests can run against real S3 semantics.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	networkName := fmt.Sprintf("ena-dl-test-net-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name: networkName,
		},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(ctx) })

	minioReq := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Networks:     []string{networkName},
		NetworkAliases: map[string][]string{
			networkName: {"minio"},
		},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: minioReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	createBucketWithMC(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := minioContainer.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}

	port, err := minioContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	bucketURL := fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
		bucketName,
		endpoint,
	)

	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return &MinioEnv{
		Container: minioContainer,
		BucketURL: bucketURL,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// createBucketWithMC creates a bucket using a one-shot minio/mc container.
func createBucketWithMC(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	mcReq := testcontainers.ContainerRequest{
		Image:      "minio/mc:latest",
		Networks:   []string{networkName},
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd: []string{
			fmt.Sprintf(
				"/usr/bin/mc config host add myminio http://minio:9000 %s %s && "+
					"/usr/bin/mc mb myminio/%s && "+
					"/usr/bin/mc policy set download myminio/%s; "+
					"exit 0",
				accessKey, secretKey, bucketName, bucketName,
			),
		},
		WaitingFor: wait.ForExit(),
	}

	mcContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: mcReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mcContainer.Terminate(ctx)
}

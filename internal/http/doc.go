// Package http provides an HTTP client tuned for large archive downloads.
//
// This package handles:
//   - HEAD requests for remote file metadata
//   - GET requests resuming from a byte offset via Range headers
//   - Retry with exponential backoff and jitter
//   - Mapping status codes to sentinel errors
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Fetch metadata
//	info, err := client.Head(ctx, url)
//
//	// Resume a download from byte 1024
//	resp, err := client.GetFrom(ctx, url, 1024)
//	defer resp.Body.Close()
//	// resp.Resumed reports whether the server honored the range
package http

// Package config defines configuration structures for the ena-dl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (ENADL_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    OutputDir string
//	    Mode      string
//	    Workers   int
//	    Quiet     bool
//	    Retry     RetryConfig
//	    Aspera    AsperaConfig
//	    Bucket    string
//	}
//
//	type RetryConfig struct {
//	    Attempts   int
//	    Backoff    time.Duration
//	    MaxBackoff time.Duration
//	}
//
// The Aspera section locates the external transfer client and its
// private key; both are established once at process start.
package config

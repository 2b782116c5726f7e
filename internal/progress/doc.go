// Package progress provides progress reporting for downloads.
//
// This package outputs human-readable progress information to stderr,
// including completion percentage, transfer speed, and ETA.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    TotalFiles: len(entries),
//	    TotalSize:  totalBytes,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as files complete
//	reporter.FileCompleted(fileSize)
//
// # Output Format
//
//	[ena-dl] Downloading 4 files | Total size: 1.2 GB | Workers: 4
//	[ena-dl] Progress: 45.2% | 554 MB / 1.2 GB | Speed: 12 MB/s | ETA: 1m 2s
//	[ena-dl] Files: 2 completed | 1 in-progress | 1 pending
package progress

package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalSize is the total size in bytes to download.
	TotalSize int64

	// TotalFiles is the total number of files.
	TotalFiles int

	// Workers is the number of parallel workers.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	completedBytes atomic.Int64
	completedFiles atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	fmt.Fprintf(r.opts.Output, "[ena-dl] Downloading %d files | Total size: %s | Workers: %d\n",
		r.opts.TotalFiles,
		formatBytes(r.opts.TotalSize),
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the progress reporter.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
}

// FileStarted marks a file as in progress.
func (r *Reporter) FileStarted() {
	r.inProgress.Add(1)
}

// FileCompleted marks a file as completed.
func (r *Reporter) FileCompleted(size int64) {
	r.completedBytes.Add(size)
	r.completedFiles.Add(1)
	r.inProgress.Add(-1)
}

// FileFailed marks a file as failed (removes from in-progress).
func (r *Reporter) FileFailed() {
	r.inProgress.Add(-1)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	completed := r.completedBytes.Load()
	completedFiles := int(r.completedFiles.Load())
	inProgress := int(r.inProgress.Load())

	// Calculate speed
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	bytesThisPeriod := completed - r.lastBytes
	speed := float64(bytesThisPeriod) / elapsed

	r.lastUpdate = now
	r.lastBytes = completed

	// Calculate percentage and ETA
	var percent float64
	eta := "calculating..."
	if r.opts.TotalSize > 0 {
		percent = float64(completed) / float64(r.opts.TotalSize) * 100
		if speed > 0 {
			remaining := float64(r.opts.TotalSize - completed)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		}
	}

	pending := r.opts.TotalFiles - completedFiles - inProgress
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "\r[ena-dl] Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		percent,
		formatBytes(completed),
		formatBytes(r.opts.TotalSize),
		formatBytes(int64(speed)),
		eta,
	)
	fmt.Fprintf(r.opts.Output, "\n[ena-dl] Files: %d completed | %d in-progress | %d pending    \033[A",
		completedFiles,
		inProgress,
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := r.completedBytes.Load()
	completedFiles := int(r.completedFiles.Load())
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[ena-dl] Transferred %s in %d files    \n",
		formatBytes(completed),
		completedFiles,
	)
	fmt.Fprintf(r.opts.Output, "[ena-dl] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// ParseBytes parses a human-readable byte string (e.g., "256MB").
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	var multiplier int64 = 1

	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "B"):
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bytes %q: %w", s, err)
	}
	return n * multiplier, nil
}

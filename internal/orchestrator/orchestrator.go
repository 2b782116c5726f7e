package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/thanhleviet/ena-dl/internal/config"
	"github.com/thanhleviet/ena-dl/internal/ena"
	"github.com/thanhleviet/ena-dl/internal/progress"
	"github.com/thanhleviet/ena-dl/internal/transfer"
	"github.com/thanhleviet/ena-dl/internal/verify"
)

// ErrRetriesExhausted wraps the last transfer or verification error once
// a task's attempt budget is spent.
var ErrRetriesExhausted = errors.New("orchestrator: retry budget exhausted")

// Adapter moves one remote file to a local destination path.
type Adapter interface {
	Fetch(ctx context.Context, entry ena.FileEntry, dest string) (int64, error)
}

// Availability reports whether the accelerated client can be used.
// Satisfied by *transfer.AscpAdapter.
type Availability interface {
	Available() bool
}

// Options configures the orchestrator.
type Options struct {
	// Mode is the transfer-mode preference applied to every task.
	Mode transfer.Mode

	// OutputDir receives downloaded files under their archive names.
	OutputDir string

	// Workers bounds the number of concurrent transfers. External
	// processes and sockets are scarce, so this is never unbounded.
	// Default: 4
	Workers int

	// Retry bounds per-task attempts and shapes the backoff.
	Retry config.RetryConfig

	// HTTP is the adapter for standard transfers. Required.
	HTTP Adapter

	// Aspera is the adapter for accelerated transfers. Required unless
	// Mode is http.
	Aspera Adapter

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	// Logf receives status lines; nil discards them.
	Logf func(format string, args ...any)
}

// Orchestrator fans resolved files out across a worker pool and gathers
// every terminal outcome into a Report.
type Orchestrator struct {
	opts        Options
	accelerated bool
}

// New creates an orchestrator. Accelerated availability is probed once
// here; a client that breaks mid-run surfaces as ordinary transfer
// failures on the retry path.
func New(opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry.Attempts = 1
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}

	accelerated := false
	if avail, ok := opts.Aspera.(Availability); ok {
		accelerated = avail.Available()
	} else if opts.Aspera != nil {
		accelerated = true
	}

	return &Orchestrator{opts: opts, accelerated: accelerated}
}

// task binds one file entry to its destination path. Task identity is
// accession+filename, so no two tasks ever share a destination.
type task struct {
	entry ena.FileEntry
	dest  string
}

// Run executes every file of every successfully resolved accession and
// returns the aggregated report. Resolution failures become failed
// outcomes immediately; they never block sibling accessions.
func (o *Orchestrator) Run(ctx context.Context, results []ena.Result) *Report {
	report := NewReport()
	defer report.Complete()

	var tasks []task
	seen := make(map[string]bool)
	for _, res := range results {
		if res.Err != nil {
			report.Add(Outcome{
				Accession: res.Accession.ID,
				State:     StateFailedPermanently,
				Err:       res.Err,
			})
			continue
		}
		if len(res.Entries) == 0 {
			o.opts.Logf("[ena-dl] %s: no files to download", res.Accession.ID)
			continue
		}
		for _, entry := range res.Entries {
			t := task{entry: entry, dest: filepath.Join(o.opts.OutputDir, entry.Name)}
			if seen[entry.Run+"/"+entry.Name] {
				continue
			}
			seen[entry.Run+"/"+entry.Name] = true
			tasks = append(tasks, t)
		}
	}

	if len(tasks) == 0 {
		return report
	}

	jobs := make(chan task)
	var wg sync.WaitGroup

	for i := 0; i < o.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				report.Add(o.execute(ctx, t))
			}
		}()
	}

	for _, t := range tasks {
		select {
		case jobs <- t:
		case <-ctx.Done():
			// Unscheduled tasks still need a terminal state.
			report.Add(Outcome{
				Accession: t.entry.Run,
				Name:      t.entry.Name,
				State:     StateFailedPermanently,
				Err:       ctx.Err(),
			})
		}
	}
	close(jobs)
	wg.Wait()

	return report
}

// execute owns one task end-to-end and returns its single terminal
// outcome. Retries re-enter the transfer phase directly; resolved
// metadata is never refetched.
func (o *Orchestrator) execute(ctx context.Context, t task) Outcome {
	start := time.Now()
	out := Outcome{
		Accession: t.entry.Run,
		Name:      t.entry.Name,
		State:     StateTransferring,
	}

	// Idempotence: a file that already verifies is not re-transferred.
	if _, err := os.Stat(t.dest); err == nil {
		if verify.File(t.dest, t.entry) == nil {
			out.State = StateDone
			out.Skipped = true
			out.Bytes = t.entry.Size
			out.Duration = time.Since(start)
			o.opts.Logf("[ena-dl] %s: already verified, skipping", t.entry.Name)
			return out
		}
	}

	if o.opts.Progress != nil {
		o.opts.Progress.FileStarted()
	}

	var lastErr error
	for attempt := 1; attempt <= o.opts.Retry.Attempts; attempt++ {
		out.Attempts = attempt

		if attempt > 1 {
			if err := o.backoff(ctx, attempt-1); err != nil {
				lastErr = err
				break
			}
		}

		proto, err := o.protocolFor(t.entry, attempt)
		if err != nil {
			// Forced mode with no matching URL cannot succeed on retry.
			lastErr = err
			break
		}
		out.Protocol = proto

		adapter := o.opts.HTTP
		if proto == transfer.ProtocolAspera {
			adapter = o.opts.Aspera
		}

		out.State = StateTransferring
		bytes, err := adapter.Fetch(ctx, t.entry, t.dest)
		if err != nil {
			lastErr = err
			o.opts.Logf("[ena-dl] %s: attempt %d/%d failed: %v", t.entry.Name, attempt, o.opts.Retry.Attempts, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		out.State = StateVerifying
		if err := verify.File(t.dest, t.entry); err != nil {
			lastErr = err
			o.opts.Logf("[ena-dl] %s: attempt %d/%d failed verification: %v", t.entry.Name, attempt, o.opts.Retry.Attempts, err)

			// Corrupt or oversized files cannot be fixed by resuming, so
			// clear them for the next attempt. Short files stay on disk
			// and resume.
			var ierr *verify.IntegrityError
			if errors.As(err, &ierr) && !ierr.Resumable {
				os.Remove(t.dest)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		out.State = StateDone
		out.Bytes = bytes
		out.Duration = time.Since(start)
		if o.opts.Progress != nil {
			o.opts.Progress.FileCompleted(bytes)
		}
		o.opts.Logf("[ena-dl] %s: done (%s via %s)", t.entry.Name, progress.FormatBytes(bytes), proto)
		return out
	}

	out.State = StateFailedPermanently
	out.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, out.Attempts, lastErr)
	out.Duration = time.Since(start)
	if o.opts.Progress != nil {
		o.opts.Progress.FileFailed()
	}
	return out
}

// protocolFor picks the transfer protocol for a given attempt. In auto
// mode the accelerated client gets the first half of the attempt budget,
// then the task falls back to HTTP, mirroring the archive's guidance of
// not burning every retry on a misbehaving fasp endpoint.
func (o *Orchestrator) protocolFor(entry ena.FileEntry, attempt int) (transfer.Protocol, error) {
	proto, err := transfer.Choose(entry, o.opts.Mode, o.accelerated)
	if err != nil {
		return "", err
	}

	if o.opts.Mode == transfer.ModeAuto && proto == transfer.ProtocolAspera {
		acceleratedBudget := (o.opts.Retry.Attempts + 1) / 2
		if attempt > acceleratedBudget {
			return transfer.ProtocolHTTP, nil
		}
	}

	return proto, nil
}

// backoff sleeps with exponential growth and jitter, honoring cancel.
func (o *Orchestrator) backoff(ctx context.Context, retry int) error {
	d := o.opts.Retry.Backoff * time.Duration(1<<uint(retry-1))
	if d > o.opts.Retry.MaxBackoff {
		d = o.opts.Retry.MaxBackoff
	}
	if d <= 0 {
		return ctx.Err()
	}

	jitter := time.Duration(float64(d) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

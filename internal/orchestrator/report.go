package orchestrator

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/thanhleviet/ena-dl/internal/ena"
	"github.com/thanhleviet/ena-dl/internal/progress"
	"github.com/thanhleviet/ena-dl/internal/transfer"
)

// State names the position of a task in its lifecycle. Only the two
// terminal states appear in a finished Report.
type State string

const (
	StatePending           State = "pending"
	StateResolving         State = "resolving"
	StateTransferring      State = "transferring"
	StateVerifying         State = "verifying"
	StateDone              State = "done"
	StateFailedPermanently State = "failed"
)

// Outcome is the terminal result of one transfer task, or of a failed
// resolution that never produced tasks.
type Outcome struct {
	Accession string
	Name      string
	State     State
	Protocol  transfer.Protocol
	Bytes     int64
	Attempts  int
	Skipped   bool // file was already present and verified
	Duration  time.Duration
	Err       error
}

// Key identifies the outcome regardless of completion order.
func (o Outcome) Key() string {
	if o.Name == "" {
		return o.Accession
	}
	return o.Accession + "/" + o.Name
}

// Report aggregates all outcomes of a run.
type Report struct {
	RunID     string
	StartedAt time.Time

	mu          sync.Mutex
	completedAt time.Time
	outcomes    map[string]Outcome
}

// NewReport creates an empty report stamped with a fresh run ID.
func NewReport() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		outcomes:  make(map[string]Outcome),
	}
}

// Add records a terminal outcome.
func (r *Report) Add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[o.Key()] = o
}

// Complete marks the report finished.
func (r *Report) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completedAt = time.Now()
}

// Outcomes returns all recorded outcomes sorted by key.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Outcome, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// OK reports whether every outcome reached Done.
func (r *Report) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		if o.State != StateDone {
			return false
		}
	}
	return true
}

// DoneOutcomes returns only the outcomes that reached Done.
func (r *Report) DoneOutcomes() []Outcome {
	var done []Outcome
	for _, o := range r.Outcomes() {
		if o.State == StateDone {
			done = append(done, o)
		}
	}
	return done
}

// RenderTable writes a human-readable per-file summary.
func (r *Report) RenderTable(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Accession", "File", "Protocol", "Attempts", "Size", "Status")
	table.Options(
		tablewriter.WithRendition(tw.Rendition{Borders: tw.Border{Left: tw.Pending, Right: tw.Pending, Top: tw.Pending, Bottom: tw.Pending}}),
		tablewriter.WithPadding(tw.Padding{Left: "  ", Right: "  "}),
	)

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, o := range r.Outcomes() {
		status := string(o.State)
		switch o.State {
		case StateDone:
			if o.Skipped {
				status = green("done (cached)")
			} else {
				status = green("done")
			}
		case StateFailedPermanently:
			status = red("failed: " + errString(o.Err))
		}

		size := ""
		if o.Bytes > 0 {
			size = progress.FormatBytes(o.Bytes)
		}
		proto := string(o.Protocol)
		attempts := ""
		if o.Attempts > 0 {
			attempts = strconv.Itoa(o.Attempts)
		}

		if err := table.Append(o.Accession, o.Name, proto, attempts, size, status); err != nil {
			return err
		}
	}

	return table.Render()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// runInfo is the serialized form written to ena-run-info.json.
type runInfo struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Accessions []runInfoResult `json:"accessions"`
	Outcomes   []runInfoEntry  `json:"outcomes"`
}

type runInfoResult struct {
	Accession string          `json:"accession"`
	Kind      string          `json:"kind"`
	Error     string          `json:"error,omitempty"`
	Files     []ena.FileEntry `json:"files,omitempty"`
}

type runInfoEntry struct {
	Accession string `json:"accession"`
	File      string `json:"file,omitempty"`
	State     string `json:"state"`
	Protocol  string `json:"protocol,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WriteRunInfo persists the resolved metadata and outcomes as JSON so a
// run leaves an auditable record next to its downloads.
func (r *Report) WriteRunInfo(path string, results []ena.Result) error {
	r.mu.Lock()
	info := runInfo{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.completedAt,
	}
	r.mu.Unlock()

	for _, res := range results {
		rr := runInfoResult{
			Accession: res.Accession.ID,
			Kind:      string(res.Accession.Kind),
			Files:     res.Entries,
		}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		info.Accessions = append(info.Accessions, rr)
	}

	for _, o := range r.Outcomes() {
		info.Outcomes = append(info.Outcomes, runInfoEntry{
			Accession: o.Accession,
			File:      o.Name,
			State:     string(o.State),
			Protocol:  string(o.Protocol),
			Bytes:     o.Bytes,
			Attempts:  o.Attempts,
			Skipped:   o.Skipped,
			Error:     errString(o.Err),
		})
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

package ena

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	enahttp "github.com/thanhleviet/ena-dl/internal/http"
)

// DefaultBaseURL is the ENA warehouse search endpoint serving
// tab-separated run reports.
const DefaultBaseURL = "https://www.ebi.ac.uk/ena/data/warehouse/search"

// reportFields are the columns requested from the warehouse. The fastq_*
// columns carry semicolon-separated parallel lists, one element per file.
var reportFields = []string{
	"run_accession",
	"experiment_accession",
	"sample_accession",
	"study_accession",
	"library_layout",
	"fastq_bytes",
	"fastq_md5",
	"fastq_ftp",
	"fastq_aspera",
}

// Common errors.
var (
	ErrUnknownAccession = errors.New("ena: accession not found in archive")
	ErrMalformedReport  = errors.New("ena: malformed file report")
)

// ResolutionError reports a failed lookup for one accession.
type ResolutionError struct {
	Accession string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("ena: resolve %s: %v", e.Accession, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// FileEntry describes one retrievable file for a run. Entries are built
// by the Resolver from archive metadata and read-only afterward.
type FileEntry struct {
	Run        string `json:"run"`                  // run accession owning the file
	Experiment string `json:"experiment"`           // experiment accession, for grouping
	Sample     string `json:"sample"`               // sample accession, for grouping
	Name       string `json:"name"`                 // canonical archive file name
	Size       int64  `json:"size"`                 // expected size in bytes
	MD5        string `json:"md5"`                  // expected hex md5 digest
	HTTPURL    string `json:"http_url"`             // https URL for standard transfer
	AsperaURL  string `json:"aspera_url,omitempty"` // host:path for accelerated transfer, may be empty
	PairIndex  int    `json:"pair_index"`           // 0 for R1/single, 1 for R2
}

// Result holds the resolution outcome for a single accession.
type Result struct {
	Accession Accession
	Entries   []FileEntry
	Err       error
}

// Options configures the resolver.
type Options struct {
	// BaseURL overrides the warehouse endpoint, mainly for tests.
	BaseURL string

	// HTTP configures the underlying HTTP client.
	HTTP enahttp.Options
}

// Resolver translates accessions into concrete file metadata.
type Resolver struct {
	baseURL string
	client  *enahttp.Client
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts Options) *Resolver {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTP.Timeout == 0 {
		opts.HTTP = enahttp.DefaultOptions()
	}
	return &Resolver{
		baseURL: opts.BaseURL,
		client:  enahttp.NewClient(opts.HTTP),
	}
}

// Resolve looks up every accession and returns one Result per input, in
// input order. Lookups are batched per accession kind to reduce round
// trips; a failed batch marks only its own accessions, so unrelated
// accessions still resolve.
func (r *Resolver) Resolve(ctx context.Context, accessions []Accession) []Result {
	results := make([]Result, len(accessions))
	byKind := make(map[Kind][]int)

	for i, acc := range accessions {
		results[i] = Result{Accession: acc}
		byKind[acc.Kind] = append(byKind[acc.Kind], i)
	}

	for kind, idxs := range byKind {
		batch := make([]Accession, len(idxs))
		for j, i := range idxs {
			batch[j] = accessions[i]
		}

		rows, err := r.query(ctx, kind, batch)
		if err != nil {
			for _, i := range idxs {
				results[i].Err = &ResolutionError{Accession: accessions[i].ID, Err: err}
			}
			continue
		}

		for _, i := range idxs {
			entries, found, err := entriesFor(accessions[i], kind, rows)
			if err != nil {
				results[i].Err = &ResolutionError{Accession: accessions[i].ID, Err: err}
				continue
			}
			if !found {
				results[i].Err = &ResolutionError{Accession: accessions[i].ID, Err: ErrUnknownAccession}
				continue
			}
			results[i].Entries = entries
		}
	}

	return results
}

// Unreachable reports whether every result failed at the transport level,
// meaning the warehouse endpoint could not be queried at all. Unknown
// accessions and malformed payloads are answers from a reachable
// endpoint and do not count.
func Unreachable(results []Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, res := range results {
		if res.Err == nil ||
			errors.Is(res.Err, ErrUnknownAccession) ||
			errors.Is(res.Err, ErrMalformedReport) {
			return false
		}
	}
	return true
}

// query fetches the warehouse report for a batch of same-kind accessions.
func (r *Resolver) query(ctx context.Context, kind Kind, batch []Accession) ([]reportRow, error) {
	terms := make([]string, len(batch))
	for i, acc := range batch {
		terms[i] = fmt.Sprintf("%s=%q", kind.queryField(), acc.ID)
	}

	params := url.Values{}
	params.Set("result", "read_run")
	params.Set("display", "report")
	params.Set("query", strings.Join(terms, " OR "))
	params.Set("fields", strings.Join(reportFields, ","))

	body, err := r.client.Get(ctx, r.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	return parseReport(string(data))
}

// reportRow is one parsed line of the tab-separated report.
type reportRow map[string]string

// parseReport parses the tab-separated warehouse report. The first line
// names the columns; an empty report (header only, or nothing) yields
// zero rows.
func parseReport(report string) ([]reportRow, error) {
	var rows []reportRow
	var cols []string

	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if cols == nil {
			cols = fields
			continue
		}
		if len(fields) != len(cols) {
			return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrMalformedReport, len(cols), len(fields))
		}
		row := make(reportRow, len(cols))
		for i, c := range cols {
			row[c] = fields[i]
		}
		rows = append(rows, row)
	}

	if cols == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedReport)
	}

	return rows, nil
}

// entriesFor collects the file entries of every report row belonging to
// the accession. found is false when no row references the accession at
// all, which distinguishes an unknown accession from one whose runs
// simply expose no fastq files. A row that references the accession but
// cannot be expanded is an error, never an empty result.
func entriesFor(acc Accession, kind Kind, rows []reportRow) ([]FileEntry, bool, error) {
	var entries []FileEntry
	var found bool
	for _, row := range rows {
		if row[kind.queryField()] != acc.ID {
			continue
		}
		found = true
		rowEntries, err := rowToEntries(row)
		if err != nil {
			return nil, true, err
		}
		entries = append(entries, rowEntries...)
	}
	return entries, found, nil
}

// rowToEntries expands one run row into per-file entries. The fastq_ftp,
// fastq_md5, fastq_bytes and fastq_aspera columns are parallel
// semicolon-separated lists.
func rowToEntries(row reportRow) ([]FileEntry, error) {
	ftpList := splitList(row["fastq_ftp"])
	if len(ftpList) == 0 {
		return nil, nil
	}

	md5List := splitList(row["fastq_md5"])
	sizeList := splitList(row["fastq_bytes"])
	asperaList := splitList(row["fastq_aspera"])

	if len(md5List) != len(ftpList) || len(sizeList) != len(ftpList) {
		return nil, fmt.Errorf("%w: fastq column lengths differ for %s", ErrMalformedReport, row["run_accession"])
	}

	entries := make([]FileEntry, 0, len(ftpList))
	for i, ftp := range ftpList {
		size, err := strconv.ParseInt(sizeList[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad fastq_bytes %q", ErrMalformedReport, sizeList[i])
		}

		entry := FileEntry{
			Run:        row["run_accession"],
			Experiment: row["experiment_accession"],
			Sample:     row["sample_accession"],
			Name:       path.Base(ftp),
			Size:       size,
			MD5:        md5List[i],
			HTTPURL:    httpURL(ftp),
			PairIndex:  i,
		}
		if i < len(asperaList) {
			entry.AsperaURL = asperaList[i]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// httpURL upgrades a scheme-less report URL to https. The warehouse
// emits bare host/path values; an explicit scheme is kept as-is.
func httpURL(ftp string) string {
	if strings.Contains(ftp, "://") {
		return ftp
	}
	return "https://" + ftp
}

// splitList splits a semicolon-separated report field, dropping empties.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package merge concatenates verified per-run fastq files into
// per-experiment or per-sample outputs. Gzip members concatenate
// byte-wise, so merged outputs stay valid fastq.gz files.
package merge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/thanhleviet/ena-dl/internal/ena"
)

// GroupBy selects the accession used to group runs.
type GroupBy string

const (
	ByExperiment GroupBy = "experiment"
	BySample     GroupBy = "sample"
)

// ParseGroupBy validates a group-by string. Empty means no grouping.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case ByExperiment, BySample:
		return GroupBy(s), nil
	default:
		return "", fmt.Errorf("merge: unknown group-by %q", s)
	}
}

// Group collects the downloaded mates of one experiment or sample.
type Group struct {
	R1 []string `json:"r1"`
	R2 []string `json:"r2"`
}

// Plan buckets verified entries by the grouping accession. Paths are the
// local file locations, parallel to entries.
func Plan(entries []ena.FileEntry, paths []string, by GroupBy) map[string]*Group {
	groups := make(map[string]*Group)
	for i, entry := range entries {
		name := entry.Sample
		if by == ByExperiment {
			name = entry.Experiment
		}
		if name == "" {
			continue
		}

		g := groups[name]
		if g == nil {
			g = &Group{}
			groups[name] = g
		}
		if entry.PairIndex > 0 {
			g.R2 = append(g.R2, paths[i])
		} else {
			g.R1 = append(g.R1, paths[i])
		}
	}

	for _, g := range groups {
		sort.Strings(g.R1)
		sort.Strings(g.R2)
	}
	return groups
}

// Execute merges each group's files inside outDir. Groups with both
// mates produce <name>_R1.fastq.gz and <name>_R2.fastq.gz; unpaired
// groups produce <name>.fastq.gz. Source files are removed once merged.
func Execute(groups map[string]*Group, outDir string) error {
	for name, g := range groups {
		// Not all runs labeled as paired actually are.
		if len(g.R1) > 0 && len(g.R2) > 0 {
			if err := concat(g.R1, filepath.Join(outDir, name+"_R1.fastq.gz")); err != nil {
				return err
			}
			if err := concat(g.R2, filepath.Join(outDir, name+"_R2.fastq.gz")); err != nil {
				return err
			}
			continue
		}
		if len(g.R1) > 0 {
			if err := concat(g.R1, filepath.Join(outDir, name+".fastq.gz")); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteMergers records the grouping decisions next to the downloads.
func WriteMergers(groups map[string]*Group, path string) error {
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// concat streams srcs into dst in order and removes them. A single
// source is renamed instead of copied.
func concat(srcs []string, dst string) error {
	if len(srcs) == 1 {
		if srcs[0] == dst {
			return nil
		}
		return os.Rename(srcs[0], dst)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	for _, src := range srcs {
		in, err := os.Open(src)
		if err != nil {
			out.Close()
			return fmt.Errorf("merge: %w", err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			return fmt.Errorf("merge: %w", err)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	for _, src := range srcs {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("merge: %w", err)
		}
	}
	return nil
}

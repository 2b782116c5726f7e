package ena

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies an accession by the archive record type it names.
type Kind string

const (
	KindRun        Kind = "run"
	KindExperiment Kind = "experiment"
	KindSample     Kind = "sample"
	KindStudy      Kind = "study"
)

// queryField returns the warehouse search field matching the kind.
func (k Kind) queryField() string {
	switch k {
	case KindRun:
		return "run_accession"
	case KindExperiment:
		return "experiment_accession"
	case KindSample:
		return "sample_accession"
	default:
		return "study_accession"
	}
}

// accessionPattern matches INSDC-style accessions: a short uppercase
// prefix followed by digits, e.g. SRR000001, ERX123456, PRJEB1234.
var accessionPattern = regexp.MustCompile(`^[A-Z]{2,6}[0-9]+$`)

// Accession is a validated archive identifier.
type Accession struct {
	ID   string
	Kind Kind
}

// ParseAccession validates id and guesses its kind from the prefix:
// [SED]RR is a run, [SED]RX an experiment, [SED]RS a sample, anything
// else is treated as a study.
func ParseAccession(id string) (Accession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Accession{}, fmt.Errorf("ena: empty accession")
	}
	if !accessionPattern.MatchString(id) {
		return Accession{}, fmt.Errorf("ena: malformed accession %q", id)
	}

	kind := KindStudy
	if len(id) >= 3 {
		switch id[1:3] {
		case "RR":
			kind = KindRun
		case "RX":
			kind = KindExperiment
		case "RS":
			kind = KindSample
		}
	}

	return Accession{ID: id, Kind: kind}, nil
}

// ParseAccessionAs validates id and assigns an explicit kind, bypassing
// the prefix guess.
func ParseAccessionAs(id string, kind Kind) (Accession, error) {
	acc, err := ParseAccession(id)
	if err != nil {
		return Accession{}, err
	}
	acc.Kind = kind
	return acc, nil
}

func (a Accession) String() string {
	return a.ID
}

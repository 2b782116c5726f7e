// Package ena resolves sequencing accessions against the European
// Nucleotide Archive.
//
// This package handles:
//   - Guessing the accession kind (run, experiment, sample, study) from its shape
//   - Querying the ENA warehouse file-report endpoint
//   - Parsing the tab-separated report into FileEntry records
//
// # Usage
//
//	acc, err := ena.ParseAccession("SRR000001")
//	resolver := ena.NewResolver(ena.Options{})
//
//	results := resolver.Resolve(ctx, []ena.Accession{acc})
//	for _, res := range results {
//	    // res.Accession, res.Entries, res.Err
//	}
//
// A resolved accession with zero files is reported as an empty Entries
// slice, not as an error. Lookup failures are carried per accession in
// Result.Err so one bad accession never hides the others.
package ena

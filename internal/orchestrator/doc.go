// Package orchestrator drives the resolve, transfer, verify pipeline.
//
// Each resolved file becomes a task owned end-to-end by one worker in a
// bounded pool. A task walks Pending -> Transferring -> Verifying ->
// Done, retrying failed transfers with exponential backoff until the
// attempt budget is spent, at which point it lands in FailedPermanently
// without disturbing sibling tasks. Terminal outcomes are aggregated
// into a Report keyed by accession and file name.
package orchestrator

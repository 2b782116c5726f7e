// Package transfer moves archive files onto local disk.
//
// Two adapters are provided: an HTTP adapter performing resumable
// Range downloads, and an Aspera adapter shelling out to the external
// ascp client for accelerated UDP transfers. Choose picks between them
// from the entry's available URLs and the requested mode; it is a pure
// decision function and performs no I/O.
//
// Both adapters write to the final destination path so that an
// interrupted transfer resumes in place on the next invocation.
package transfer

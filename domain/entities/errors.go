package entities

import "errors"

// Error taxonomy for the ingestion pipeline. Handlers map these onto HTTP
// status codes; everything past the synchronous path only logs them.
var (
	// ErrMalformedFrame means the inbound buffer could not be decoded. No
	// state has been mutated; the client gets a 4xx.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrStorageUnavailable is a transient storage fault. Retransmitting the
	// same frame is safe.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIncompleteUpload means a sequence number never arrived before the
	// gap wait expired. The upload stays pending.
	ErrIncompleteUpload = errors.New("incomplete upload")

	// ErrReassemblyFailed means the artifact could not be constructed. The
	// upload remains eligible for a later finalize attempt.
	ErrReassemblyFailed = errors.New("reassembly failed")

	// ErrClassificationFailed is swallowed by the dispatcher; the
	// observation keeps an unset classification.
	ErrClassificationFailed = errors.New("classification failed")

	// ErrNotFound is returned by repositories for missing documents.
	ErrNotFound = errors.New("not found")
)

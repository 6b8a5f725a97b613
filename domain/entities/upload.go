package entities

// UploadState is the lifecycle state of one in-flight chunked upload.
type UploadState string

const (
	// UploadStateReceiving accumulates frames; entered on the first frame
	// observed for a file id.
	UploadStateReceiving UploadState = "receiving"
	// UploadStateFinalizing means an end-of-stream frame won the finalize
	// claim and reassembly is pending or in progress.
	UploadStateFinalizing UploadState = "finalizing"
	// UploadStateDone means the artifact exists and classification has been
	// dispatched. A done upload can never be re-created or re-finalized.
	UploadStateDone UploadState = "done"
)

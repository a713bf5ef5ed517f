package agent

// File is one uploaded document.
type File struct {
	// Name is the original filename; its extension selects the extractor.
	Name string
	// Data holds the raw bytes.
	Data []byte
}

// IngestOutcome reports the result of ingesting one file.
type IngestOutcome struct {
	// Name is the uploaded filename.
	Name string `json:"name"`
	// DocumentID is the content hash. Empty when the file was rejected
	// before hashing.
	DocumentID string `json:"document_id,omitempty"`
	// Status is "ready" or "failed".
	Status string `json:"status"`
	// Reused is true when the document was already processed.
	Reused bool `json:"reused"`
	// Chunks is the number of chunks of a ready document.
	Chunks int `json:"chunks"`
	// Error is the failure detail when Status is "failed".
	Error string `json:"error,omitempty"`
}

// UploadResult is the outcome of a batch upload into a session.
type UploadResult struct {
	// SessionID is the session the batch was activated in.
	SessionID string `json:"session_id"`
	// Documents holds one outcome per file, in upload order.
	Documents []IngestOutcome `json:"documents"`
	// ActiveDocuments is the session's active set after the upload.
	ActiveDocuments []string `json:"active_documents"`
}

// QueryRequest is one natural-language request.
type QueryRequest struct {
	// Message is the query text.
	Message string `json:"message"`
	// SessionID names an existing session.
	SessionID string `json:"session_id"`
	// ActiveDocuments, when non-nil, replaces the session's active set before
	// the query is classified. An empty non-nil slice clears it.
	ActiveDocuments []string `json:"active_documents,omitempty"`
}

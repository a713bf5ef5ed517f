package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/docstore"
	"github.com/54b3r/docintel-go/internal/logging"
)

// multipartMemory is the part of a multipart upload kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

// handleUpload handles POST /api/documents. Every "file" part is ingested and
// the batch's ready documents become the session's active set. The optional
// "session_id" field names the session; a new one is created when absent.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", s.cfg.UploadMaxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, `at least one "file" part is required`)
		return
	}

	files := make([]agent.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			log.Warn("upload: unreadable part", slog.String("filename", fh.Filename), slog.Any("error", err))
			writeError(w, http.StatusBadRequest, fmt.Sprintf("could not read %q", fh.Filename))
			return
		}
		files = append(files, agent.File{Name: fh.Filename, Data: data})
	}

	res, err := s.svc.Upload(r.Context(), r.FormValue("session_id"), files)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	for _, d := range res.Documents {
		s.metrics.ingestDocumentsTotal.WithLabelValues(ingestOutcome(d)).Inc()
	}
	writeJSON(w, r, http.StatusOK, res)
}

// readPart reads one uploaded file.
func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ingestOutcome is the metrics label for one ingested document.
func ingestOutcome(d agent.IngestOutcome) string {
	switch {
	case d.Status != string(docstore.StatusReady):
		return "failed"
	case d.Reused:
		return "reused"
	default:
		return "fresh"
	}
}

// handleListDocuments handles GET /api/documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.svc.Documents()
	if docs == nil {
		docs = []docstore.Document{}
	}
	writeJSON(w, r, http.StatusOK, documentsResponse{Documents: docs})
}

// handleDeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.svc.RemoveDocument(r.Context(), r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	removed := true
	writeJSON(w, r, http.StatusOK, ackResponse{OK: true, Removed: &removed})
}

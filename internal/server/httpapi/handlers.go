package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/enclave"
	"github.com/gorilla/mux"
)

type createDocumentRequest struct {
	Name         string `json:"name"`
	EncryptedKey []byte `json:"encrypted_key"`
	Proof        []byte `json:"proof"`
}

type createDocumentResponse struct {
	ID int64 `json:"id"`
}

type updateDocumentRequest struct {
	EncryptedBody []byte `json:"encrypted_body"`
}

type grantAccessRequest struct {
	Target string `json:"target"`
}

type documentResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	EncryptedBody []byte    `json:"encrypted_body"`
	EncryptedKey  []byte    `json:"encrypted_key"`
	Owner         string    `json:"owner"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type isEditorResponse struct {
	Editor bool `json:"editor"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type eventResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DocumentID int64     `json:"document_id"`
	Identity   string    `json:"identity"`
	Name       string    `json:"name,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.registry.Count(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	doc, err := s.registry.GetDocument(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		ID:            doc.ID,
		Name:          doc.Name,
		EncryptedBody: doc.EncryptedBody,
		EncryptedKey:  doc.EncryptedKey,
		Owner:         doc.Owner,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	})
}

func (s *Server) handleIsEditor(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	identity := mux.Vars(r)["identity"]

	editor, err := s.registry.IsEditor(r.Context(), id, identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, isEditorResponse{Editor: editor})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	log, err := s.registry.Events(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]eventResponse, 0, len(log))
	for _, e := range log {
		resp = append(resp, eventResponse{
			ID:         e.ID,
			Type:       e.Type,
			DocumentID: e.DocumentID,
			Identity:   e.Identity,
			Name:       e.Name,
			RecordedAt: e.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no caller identity")
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.registry.CreateDocument(r.Context(), caller, req.Name, req.EncryptedKey, req.Proof)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createDocumentResponse{ID: id})
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no caller identity")
		return
	}
	id := pathID(r)

	var req updateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EncryptedBody == nil {
		// A missing or null encrypted_body means an empty ciphertext,
		// never SQL NULL.
		req.EncryptedBody = []byte{}
	}

	if err := s.registry.UpdateDocument(r.Context(), caller, id, req.EncryptedBody); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no caller identity")
		return
	}
	id := pathID(r)

	var req grantAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.registry.GrantAccess(r.Context(), caller, id, req.Target); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID extracts the {id} route variable. The route pattern restricts it to
// digits, so a parse failure cannot happen for matched routes.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// writeServiceError translates sentinel errors into status codes. Anything
// unrecognized is an internal error; the detail goes to the log, not the wire.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeJSONError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, common.ErrorNotAuthorized):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrorInvalidTarget):
		writeJSONError(w, http.StatusBadRequest, "invalid grant target")
	case errors.Is(err, enclave.ErrInvalidCiphertext):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid ciphertext handle")
	case errors.Is(err, enclave.ErrInvalidProof):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid ciphertext proof")
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

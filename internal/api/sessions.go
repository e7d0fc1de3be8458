package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/session"
)

type columnPayload struct {
	Name   string   `json:"name"`
	DType  string   `json:"dtype"`
	Sample []string `json:"sample,omitempty"`
}

type datasetPayload struct {
	SourceName string          `json:"source_name"`
	TableName  string          `json:"table_name"`
	RowCount   int             `json:"row_count"`
	Columns    []columnPayload `json:"columns"`
}

type sessionPayload struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Datasets  []datasetPayload `json:"datasets"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return
	}
	sess, err := deps.Sessions.Create()
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_CREATE_FAILED", "failed to create session", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return
	}
	if err := deps.Sessions.Delete(r.PathValue("session")); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session does not exist or has expired", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_DELETE_FAILED", "failed to delete session", true, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionFromRequest resolves the {session} path value, writing the error
// response itself when the session is missing or expired.
func sessionFromRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return nil, false
	}
	sess, err := deps.Sessions.Get(r.PathValue("session"))
	if err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session does not exist or has expired", false, nil)
		return nil, false
	}
	return sess, true
}

func sessionResponse(sess *session.Session) sessionPayload {
	return sessionPayload{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt(),
		Datasets:  datasetPayloads(sess.Datasets()),
	}
}

func datasetPayloads(summaries []dataset.Summary) []datasetPayload {
	out := make([]datasetPayload, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, datasetResponse(summary))
	}
	return out
}

func datasetResponse(summary dataset.Summary) datasetPayload {
	columns := make([]columnPayload, 0, len(summary.Columns))
	for _, column := range summary.Columns {
		columns = append(columns, columnPayload{
			Name:   column.Name,
			DType:  string(column.Type),
			Sample: column.Samples,
		})
	}
	return datasetPayload{
		SourceName: summary.SourceName,
		TableName:  summary.TableName,
		RowCount:   summary.RowCount,
		Columns:    columns,
	}
}

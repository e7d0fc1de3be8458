package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tabletalk/tabletalk/internal/history"
	"github.com/tabletalk/tabletalk/internal/nl2sql"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/session"
)

type askRequest struct {
	Question string `json:"question"`
}

// handleAsk runs the full pipeline: schema description, translation,
// statement extraction, execution. Rejected model output is reported to the
// caller with the raw response and is never executed or recorded.
func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "natural-language translation is not configured", false, nil)
		return
	}

	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	if len(sess.Datasets()) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "NO_DATASETS", "upload a dataset before asking questions", false, nil)
		return
	}
	description, err := sess.Describe()
	if err != nil {
		writeError(r.Context(), w, http.StatusConflict, "TABLE_NAME_CONFLICT", err.Error(), false, nil)
		return
	}

	result, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		Question: req.Question,
		Schema:   description,
	})
	if err != nil {
		observability.ObserveTranslate(observability.TranslateFailed)
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate question", true, map[string]any{"details": err.Error()})
		return
	}

	statement, valid := nl2sql.ExtractStatement(result.Content)
	if !valid {
		observability.ObserveTranslate(observability.TranslateRejected)
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_VALID_SQL",
			"model response did not contain a usable statement", false,
			map[string]any{"raw_response": result.Content})
		return
	}
	observability.ObserveTranslate(observability.TranslateAccepted)

	queryResult, err := sess.Execute(r.Context(), statement, rowLimit(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", err.Error(), false,
			map[string]any{"sql": statement})
		return
	}
	observability.ObserveQueryDuration(queryResult.Duration)

	recordHistory(deps, r, sess, req.Question, statement, len(queryResult.Rows), queryResult.Duration.Milliseconds())

	writeJSON(w, http.StatusOK, map[string]any{
		"question":    req.Question,
		"sql":         statement,
		"provider":    result.Provider,
		"model":       result.Model,
		"columns":     queryResult.Columns,
		"rows":        queryResult.Rows,
		"row_count":   len(queryResult.Rows),
		"duration_ms": queryResult.Duration.Milliseconds(),
	})
}

func rowLimit(deps Dependencies) int {
	if deps.DefaultRowLimit > 0 {
		return deps.DefaultRowLimit
	}
	return 1000
}

// recordHistory is best effort. A history write failure is logged and does
// not fail the request that produced the result.
func recordHistory(deps Dependencies, r *http.Request, sess *session.Session, question, statement string, rowCount int, durationMs int64) {
	if deps.History == nil {
		return
	}
	err := deps.History.Record(r.Context(), history.Entry{
		SessionID:  sess.ID,
		Question:   question,
		SQL:        statement,
		RowCount:   rowCount,
		DurationMs: durationMs,
	})
	if err != nil && deps.Logger != nil {
		deps.Logger.Warn("history write failed", "error", err)
	}
}

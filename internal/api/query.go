package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/query"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

// handleQuery executes caller-written SQL against the session. Only plain
// reads are allowed here; the translation pipeline is the only path that may
// run other statement kinds.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}

	var req queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if !query.IsReadOnly(req.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only SELECT and WITH statements are allowed", false, nil)
		return
	}

	result, err := sess.Execute(r.Context(), req.SQL, rowLimit(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", err.Error(), false, nil)
		return
	}
	observability.ObserveQueryDuration(result.Duration)

	writeJSON(w, http.StatusOK, map[string]any{
		"columns":     result.Columns,
		"rows":        result.Rows,
		"row_count":   len(result.Rows),
		"duration_ms": result.Duration.Milliseconds(),
	})
}

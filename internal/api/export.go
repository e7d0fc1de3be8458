package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tabletalk/tabletalk/internal/export"
	"github.com/tabletalk/tabletalk/internal/query"
)

type exportRequest struct {
	SQL    string `json:"sql"`
	Format string `json:"format"`
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}

	var req exportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if !query.IsReadOnly(req.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only SELECT and WITH statements can be exported", false, nil)
		return
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "parquet" {
		writeError(r.Context(), w, http.StatusBadRequest, "EXPORT_FORMAT_INVALID",
			"format must be csv or parquet", false, map[string]any{"format": req.Format})
		return
	}

	result, err := sess.Execute(r.Context(), req.SQL, rowLimit(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", err.Error(), false, nil)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "result.csv"))
		if err := export.WriteCSV(w, result); err != nil && deps.Logger != nil {
			deps.Logger.Warn("csv export write failed", "error", err)
		}
	case "parquet":
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "result.parquet"))
		if err := export.WriteParquet(w, result); err != nil && deps.Logger != nil {
			deps.Logger.Warn("parquet export write failed", "error", err)
		}
	}
}

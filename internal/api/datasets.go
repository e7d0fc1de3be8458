package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/observability"
)

// handleUploadDataset accepts a delimited file either as multipart form data
// (field "file") or as a raw request body with a ?name= query parameter.
func handleUploadDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}

	maxBytes := deps.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	sourceName, body, err := uploadPayload(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "DATASET_UNREADABLE", err.Error(), false, nil)
		return
	}
	defer func() { _ = body.Close() }()

	if deps.MaxDatasets > 0 {
		existing := sess.Datasets()
		replacing := false
		table := dataset.TableNameFromSource(sourceName)
		for _, summary := range existing {
			if summary.TableName == table {
				replacing = true
				break
			}
		}
		if !replacing && len(existing) >= deps.MaxDatasets {
			writeError(r.Context(), w, http.StatusBadRequest, "DATASET_LIMIT_EXCEEDED",
				"session dataset limit reached", false, map[string]any{"max_datasets": deps.MaxDatasets})
			return
		}
	}

	ds, err := dataset.ReadDelimited(sourceName, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "DATASET_TOO_LARGE",
				"upload exceeds the size limit", false, map[string]any{"max_bytes": maxBytes})
		case errors.Is(err, dataset.ErrEmptyDataset):
			writeError(r.Context(), w, http.StatusBadRequest, "DATASET_EMPTY", err.Error(), false, nil)
		default:
			writeError(r.Context(), w, http.StatusBadRequest, "DATASET_UNREADABLE", err.Error(), false, nil)
		}
		return
	}

	summary, err := sess.AddDataset(r.Context(), ds)
	if err != nil {
		if errors.Is(err, dataset.ErrTableNameConflict) {
			writeError(r.Context(), w, http.StatusConflict, "TABLE_NAME_CONFLICT", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "DATASET_LOAD_FAILED",
			"failed to load dataset", true, map[string]any{"details": err.Error()})
		return
	}

	observability.ObserveUpload(summary.RowCount)
	writeJSON(w, http.StatusCreated, datasetResponse(summary))
}

func uploadPayload(r *http.Request) (string, io.ReadCloser, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, errors.New(`multipart upload requires a "file" field`)
		}
		name := strings.TrimSpace(header.Filename)
		if name == "" {
			return "", nil, errors.New("uploaded file has no name")
		}
		return name, file, nil
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		return "", nil, errors.New("raw uploads require a name query parameter")
	}
	return name, r.Body, nil
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}
	description, err := sess.Describe()
	if err != nil {
		writeError(r.Context(), w, http.StatusConflict, "TABLE_NAME_CONFLICT", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, description)
}

func handlePreview(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}

	table := r.PathValue("table")
	summary, found := sess.Dataset(table)
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, "DATASET_NOT_FOUND",
			"no dataset is loaded under that table name", false, map[string]any{"table": table})
		return
	}

	rows := deps.PreviewRows
	if rows <= 0 {
		rows = 5
	}
	result, err := sess.Execute(r.Context(), "SELECT * FROM "+quoteIdent(summary.TableName), rows)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_EXECUTION_FAILED",
			err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":     summary.TableName,
		"row_count": summary.RowCount,
		"columns":   result.Columns,
		"rows":      result.Rows,
	})
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tabletalk/tabletalk/internal/history"
	"github.com/tabletalk/tabletalk/internal/nl2sql"
	"github.com/tabletalk/tabletalk/internal/query"
)

type recordingHistory struct {
	entries []history.Entry
	err     error
}

func (r *recordingHistory) Record(_ context.Context, entry history.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	if limit > len(r.entries) {
		limit = len(r.entries)
	}
	return r.entries[:limit], nil
}

func (r *recordingHistory) HealthCheck(context.Context) error { return r.err }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func askSetup(t *testing.T, engine *fakeEngine, translator *fakeTranslator, store HistoryStore) (http.Handler, string) {
	t.Helper()
	h := NewHandler(testConfig(t), Dependencies{
		Sessions:   newTestManager(engine),
		Translator: translator,
		History:    store,
	})
	id := createSession(t, h)
	if rr := uploadCSV(t, h, id, "orders.csv", ordersCSV); rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", rr.Code)
	}
	return h, id
}

func TestAskExecutesExtractedStatement(t *testing.T) {
	engine := &fakeEngine{result: query.Result{
		Columns:  []string{"region", "sum_total"},
		Rows:     [][]any{{"north", 17.75}, {"south", 20.0}},
		Duration: 7 * time.Millisecond,
	}}
	translator := &fakeTranslator{result: nl2sql.Result{
		Content:  "```sql\nSELECT region, SUM(total) AS sum_total FROM orders GROUP BY region;\n```",
		Provider: "openai",
		Model:    "gpt-5",
	}}
	store := &recordingHistory{}
	h, id := askSetup(t, engine, translator, store)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/ask", `{"question":"total sales by region"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var body struct {
		SQL      string  `json:"sql"`
		RowCount int     `json:"row_count"`
		Rows     [][]any `json:"rows"`
	}
	decodeBody(t, rr, &body)
	if body.SQL != "SELECT region, SUM(total) AS sum_total FROM orders GROUP BY region" {
		t.Fatalf("sql = %q", body.SQL)
	}
	if body.RowCount != 2 {
		t.Fatalf("row_count = %d", body.RowCount)
	}
	if engine.lastSQL != body.SQL {
		t.Fatalf("executed %q", engine.lastSQL)
	}
	schema := translator.lastReq.Schema
	if len(schema.Tables) != 1 || schema.Tables[0].Table != "orders" {
		t.Fatalf("translator schema = %+v", schema)
	}
	if canonical, err := schema.Canonical(); err != nil || !strings.Contains(canonical, `"orders":{`) {
		t.Fatalf("canonical schema = %q, err = %v", canonical, err)
	}
	if len(store.entries) != 1 || store.entries[0].Question != "total sales by region" {
		t.Fatalf("history entries = %+v", store.entries)
	}
}

func TestAskRejectsRefusalResponse(t *testing.T) {
	engine := &fakeEngine{}
	translator := &fakeTranslator{result: nl2sql.Result{
		Content: "Sorry, I cannot answer that from the given tables.",
	}}
	store := &recordingHistory{}
	h, id := askSetup(t, engine, translator, store)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/ask", `{"question":"what is love"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["error_code"] != "NO_VALID_SQL" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	extra, _ := body["context"].(map[string]any)
	if extra["raw_response"] != "Sorry, I cannot answer that from the given tables." {
		t.Fatalf("raw_response = %v", extra["raw_response"])
	}
	if engine.lastSQL != "" {
		t.Fatalf("nothing should execute, got %q", engine.lastSQL)
	}
	if len(store.entries) != 0 {
		t.Fatal("rejected output must not be recorded")
	}
}

func TestAskTranslateFailure(t *testing.T) {
	translator := &fakeTranslator{err: errors.New("upstream 500")}
	h, id := askSetup(t, &fakeEngine{}, translator, nil)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/ask", `{"question":"anything"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["error_code"] != "TRANSLATE_FAILED" || body["retryable"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestAskExecutionErrorSurfacesVerbatim(t *testing.T) {
	engine := &fakeEngine{execErr: errors.New(`Binder Error: column "regionn" not found`)}
	translator := &fakeTranslator{result: nl2sql.Result{
		Content: "SELECT regionn FROM orders",
	}}
	h, id := askSetup(t, engine, translator, nil)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/ask", `{"question":"regions"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["error_code"] != "QUERY_EXECUTION_FAILED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	if !strings.Contains(body["message"].(string), "Binder Error") {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestAskWithoutDatasets(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Sessions:   newTestManager(&fakeEngine{}),
		Translator: &fakeTranslator{},
	})
	id := createSession(t, h)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/ask", `{"question":"anything"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["error_code"] != "NO_DATASETS" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestAskWithoutTranslator(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Sessions: newTestManager(&fakeEngine{})})
	id := createSession(t, h)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/ask", `{"question":"anything"}`)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAskHistoryFailureDoesNotFailRequest(t *testing.T) {
	engine := &fakeEngine{result: query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}}
	translator := &fakeTranslator{result: nl2sql.Result{Content: "SELECT COUNT(*) AS n FROM orders"}}
	store := &recordingHistory{err: errors.New("db down")}
	h, id := askSetup(t, engine, translator, store)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/ask", `{"question":"how many orders"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestQueryEndpointRejectsWrites(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newTestManager(engine)})
	id := createSession(t, h)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/query", `{"sql":"DROP TABLE orders"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["error_code"] != "SQL_NOT_ALLOWED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	if engine.lastSQL != "" {
		t.Fatalf("nothing should execute, got %q", engine.lastSQL)
	}
}

func TestQueryEndpointExecutesRead(t *testing.T) {
	engine := &fakeEngine{result: query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newTestManager(engine)})
	id := createSession(t, h)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/query", `{"sql":"SELECT COUNT(*) AS n FROM orders"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var body struct {
		RowCount int `json:"row_count"`
	}
	decodeBody(t, rr, &body)
	if body.RowCount != 1 {
		t.Fatalf("row_count = %d", body.RowCount)
	}
}

func TestExportCSV(t *testing.T) {
	engine := &fakeEngine{result: query.Result{
		Columns: []string{"region", "total"},
		Rows:    [][]any{{"north", 17.75}},
	}}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newTestManager(engine)})
	id := createSession(t, h)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/export", `{"sql":"SELECT region, total FROM orders","format":"csv"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Fatalf("Content-Type = %q", got)
	}
	if rr.Body.String() != "region,total\nnorth,17.75\n" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Sessions: newTestManager(&fakeEngine{})})
	id := createSession(t, h)

	rr := postJSON(t, h, "/v1/sessions/"+id+"/export", `{"sql":"SELECT 1","format":"xlsx"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	store := &recordingHistory{entries: []history.Entry{
		{SessionID: "s1", Question: "q", SQL: "SELECT 1"},
	}}
	h := NewHandler(testConfig(t), Dependencies{History: store})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history?limit=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Entries []history.Entry `json:"entries"`
	}
	decodeBody(t, rr, &body)
	if len(body.Entries) != 1 || body.Entries[0].Question != "q" {
		t.Fatalf("entries = %+v", body.Entries)
	}
}

func TestHistoryEndpointWithoutStore(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

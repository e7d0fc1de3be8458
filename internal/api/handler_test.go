package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/nl2sql"
	"github.com/tabletalk/tabletalk/internal/query"
	"github.com/tabletalk/tabletalk/internal/session"
)

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("tabletalk-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

type fakeEngine struct {
	loaded  []dataset.Dataset
	result  query.Result
	execErr error
	lastSQL string
	closed  bool
}

func (f *fakeEngine) LoadDataset(_ context.Context, ds dataset.Dataset) error {
	f.loaded = append(f.loaded, ds)
	return nil
}

func (f *fakeEngine) Execute(_ context.Context, sqlText string, _ int) (query.Result, error) {
	f.lastSQL = sqlText
	if f.execErr != nil {
		return query.Result{}, f.execErr
	}
	return f.result, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

type fakeTranslator struct {
	result  nl2sql.Result
	err     error
	lastReq nl2sql.Request
}

func (f *fakeTranslator) Translate(_ context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return f.result, nil
}

func newTestManager(engine *fakeEngine) *session.Manager {
	return session.NewManager(session.ManagerConfig{
		Factory: func() (query.Engine, error) { return engine, nil },
	})
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body %s", rr.Code, rr.Body.String())
	}
	var body struct {
		ID string `json:"id"`
	}
	decodeBody(t, rr, &body)
	if body.ID == "" {
		t.Fatal("expected session id")
	}
	return body.ID
}

func uploadCSV(t *testing.T, h http.Handler, sessionID, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost,
		"/v1/sessions/"+sessionID+"/datasets?name="+name, strings.NewReader(content))
	req.Header.Set("Content-Type", "text/csv")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("json decode failed: %v (body %s)", err, rr.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	if err := combined(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestUIHandlerServesNonAPIRoutes(t *testing.T) {
	ui := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ui"))
	})
	h := NewHandler(testConfig(t), Dependencies{UI: ui})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/anything", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ui" {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
}

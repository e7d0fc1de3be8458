package tabletalkctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("tabletalkctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "tabletalk API base URL")
	sessionID := fs.String("session", defaults.SessionID, "Session ID (required by session-scoped commands)")
	file := fs.String("file", "", "Path of the dataset file to upload")
	name := fs.String("name", "", "Override the uploaded dataset's source name")
	question := fs.String("question", "", "Natural-language question for the ask command")
	sqlText := fs.String("sql", "", "SQL text for the query command")
	limit := fs.Int("limit", 20, "Number of entries for the history command")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	base := strings.TrimRight(*baseURL, "/")

	var (
		method      string
		path        string
		body        io.Reader
		contentType string
	)

	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "session-new":
		method, path = http.MethodPost, "/v1/sessions"
	case "session-info":
		if *sessionID == "" {
			return missingFlag(stderr, command, "-session")
		}
		method, path = http.MethodGet, "/v1/sessions/"+*sessionID
	case "session-drop":
		if *sessionID == "" {
			return missingFlag(stderr, command, "-session")
		}
		method, path = http.MethodDelete, "/v1/sessions/"+*sessionID
	case "upload":
		if *sessionID == "" {
			return missingFlag(stderr, command, "-session")
		}
		if *file == "" {
			return missingFlag(stderr, command, "-file")
		}
		payload, err := os.ReadFile(*file)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "read %s: %v\n", *file, err)
			return 1
		}
		sourceName := firstNonEmpty(*name, filepath.Base(*file))
		method = http.MethodPost
		path = "/v1/sessions/" + *sessionID + "/datasets?name=" + url.QueryEscape(sourceName)
		body = bytes.NewReader(payload)
		contentType = "text/csv"
	case "schema":
		if *sessionID == "" {
			return missingFlag(stderr, command, "-session")
		}
		method, path = http.MethodGet, "/v1/sessions/"+*sessionID+"/schema"
	case "ask":
		if *sessionID == "" {
			return missingFlag(stderr, command, "-session")
		}
		if strings.TrimSpace(*question) == "" {
			return missingFlag(stderr, command, "-question")
		}
		encoded, err := json.Marshal(map[string]string{"question": *question})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
			return 1
		}
		method = http.MethodPost
		path = "/v1/sessions/" + *sessionID + "/ask"
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case "query":
		if *sessionID == "" {
			return missingFlag(stderr, command, "-session")
		}
		if strings.TrimSpace(*sqlText) == "" {
			return missingFlag(stderr, command, "-sql")
		}
		encoded, err := json.Marshal(map[string]string{"sql": *sqlText})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
			return 1
		}
		method = http.MethodPost
		path = "/v1/sessions/" + *sessionID + "/query"
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case "history":
		method = http.MethodGet
		path = fmt.Sprintf("/v1/history?limit=%d", *limit)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	code, responseBody, err := doRequest(ctx, client, method, base+path, body, contentType)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url string, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func missingFlag(w io.Writer, command, name string) int {
	_, _ = fmt.Fprintf(w, "%s requires %s\n", command, name)
	return 2
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tabletalkctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health         GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready          GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  session-new    POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  session-info   GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  session-drop   DELETE /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  upload         POST /v1/sessions/{id}/datasets (-file, optional -name)")
	_, _ = fmt.Fprintln(w, "  schema         GET /v1/sessions/{id}/schema")
	_, _ = fmt.Fprintln(w, "  ask            POST /v1/sessions/{id}/ask (-question)")
	_, _ = fmt.Fprintln(w, "  query          POST /v1/sessions/{id}/query (-sql)")
	_, _ = fmt.Fprintln(w, "  history        GET /v1/history (-limit)")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	d, _ := newTestDispatcher(&fakeGenerator{})
	return NewHandler(d)
}

func TestHandlerPreflight(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/mcp", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected CORS origin header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestHandlerInfoForPlainClients(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain info body, got %q", ct)
	}
	body := rec.Body.String()
	for _, method := range []string{"initialize", "tools/list", "tools/call"} {
		if !strings.Contains(body, method) {
			t.Errorf("Expected info body to mention %q", method)
		}
	}
}

// parseFrames splits an SSE body into its decoded data payloads.
func parseFrames(t *testing.T, body string) []Response {
	t.Helper()
	var out []Response
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var resp Response
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp); err != nil {
			t.Fatalf("Failed to decode frame %q: %v", line, err)
		}
		out = append(out, resp)
	}
	return out
}

func newStreamRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandlerStream(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()

	body := `data: {"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
		`data: {"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"
	h.ServeHTTP(rec, newStreamRequest(body))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %q", ct)
	}

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 2 {
		t.Fatalf("Expected 2 response frames, got %d", len(frames))
	}
	if string(frames[0].ID) != "1" || string(frames[1].ID) != "2" {
		t.Errorf("Expected ids 1 and 2, got %s and %s", frames[0].ID, frames[1].ID)
	}
	for i, f := range frames {
		if f.Error != nil {
			t.Errorf("Frame %d: unexpected error %+v", i, f.Error)
		}
	}
}

func TestHandlerStreamDropsMalformedFrames(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()

	// One garbage frame, a blank line, then a valid frame: the stream must
	// survive and answer only the valid one.
	body := "data: {not json at all\n" +
		"\n" +
		`{"jsonrpc":"2.0","id":7,"method":"initialize"}` + "\n"
	h.ServeHTTP(rec, newStreamRequest(body))

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("Expected 1 response frame, got %d", len(frames))
	}
	if string(frames[0].ID) != "7" {
		t.Errorf("Expected id 7, got %s", frames[0].ID)
	}
	if frames[0].Error != nil {
		t.Errorf("Unexpected error: %+v", frames[0].Error)
	}
}

func TestHandlerStreamBareJSONLines(t *testing.T) {
	// Frames without the "data:" prefix are accepted too.
	h := newTestHandler(t)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, newStreamRequest(`{"jsonrpc":"2.0","id":"a","method":"tools/list"}`+"\n"))

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("Expected 1 response frame, got %d", len(frames))
	}
	if string(frames[0].ID) != `"a"` {
		t.Errorf("Expected string id echoed, got %s", frames[0].ID)
	}
}

func TestHandlerStreamErrorEnvelope(t *testing.T) {
	// Unknown methods come back as protocol errors on the stream, not as
	// transport failures.
	h := newTestHandler(t)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, newStreamRequest(`data: {"jsonrpc":"2.0","id":3,"method":"bogus"}`+"\n"))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 despite the protocol error, got %d", rec.Code)
	}
	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("Expected 1 response frame, got %d", len(frames))
	}
	if frames[0].Error == nil || frames[0].Error.Code != CodeMethodNotFound {
		t.Errorf("Expected method-not-found error, got %+v", frames[0].Error)
	}
}

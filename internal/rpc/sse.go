package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const defaultInfo = `repotutor protocol endpoint.

POST newline-delimited "data: <json>" frames with Accept: text/event-stream
to exchange JSON-RPC messages. Supported methods: initialize, tools/list,
tools/call.
`

// Handler is the transport adapter: SSE-framed JSON-RPC for streaming
// clients, a static informational body for everything else.
type Handler struct {
	Dispatcher *Dispatcher
	Info       string
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{Dispatcher: d, Info: defaultInfo}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, h.Info)
		return
	}

	h.serveStream(w, r)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
}

// serveStream decodes "data: <json>" frames from the request body, feeds
// each to the dispatcher, and writes each response back as an SSE frame.
// Malformed frames are logged and dropped; they never end the stream.
func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload := line
		if strings.HasPrefix(line, "data:") {
			payload = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}

		var req Request
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		resp := h.Dispatcher.Handle(r.Context(), req)
		out, err := json.Marshal(resp)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode response")
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", out)
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("request stream ended with error")
	}
}

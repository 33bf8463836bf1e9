// CLAUDE:SUMMARY Streamable HTTP endpoint — POST dispatch with Accept negotiation, GET server-push event stream, DELETE termination
package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SessionHeader carries the session identifier across HTTP exchanges.
const SessionHeader = "Mcp-Session-Id"

// sessionErrorBody is the fixed client-error message for any session lookup
// miss. Never retried server-side.
const sessionErrorBody = "Invalid or missing session ID"

// maxBodySize caps inbound envelope bodies.
const maxBodySize = 4 * 1024 * 1024

// keepAliveInterval paces comment frames on the long-lived GET stream.
const keepAliveInterval = 30 * time.Second

// HTTPHandler multiplexes stateful protocol sessions over stateless HTTP
// requests. POST carries request/response envelopes, GET opens the per-
// session server-push event stream, DELETE terminates the session.
type HTTPHandler struct {
	store *SessionStore
}

func NewHTTPHandler(store *SessionStore) *HTTPHandler {
	return &HTTPHandler{store: store}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// isEstablishing reports whether a method may create a session on first
// contact. Everything else requires an existing mapping.
func isEstablishing(method string) bool {
	return method == "initialize" || method == "tools/call"
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, newError(nil, CodeParseError, "parse error"))
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	transport, err := h.store.ResolveOrCreate(sessionID, isEstablishing(req.Method))
	if err != nil {
		http.Error(w, sessionErrorBody, http.StatusBadRequest)
		return
	}

	resp := transport.Handle(r.Context(), &req)

	w.Header().Set(SessionHeader, transport.ID())
	if resp == nil {
		// Notification: acknowledged, nothing to send back.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if wantsEventStream(r) {
		writeEventStream(w, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		http.Error(w, sessionErrorBody, http.StatusBadRequest)
		return
	}
	transport, ok := h.store.Get(sessionID)
	if !ok {
		http.Error(w, sessionErrorBody, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(SessionHeader, transport.ID())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	transport.touch()
	slog.Debug("push stream opened", "session_id", transport.ID())

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-transport.Done():
			return
		case msg := <-transport.notify:
			if err := writeEvent(w, msg); err != nil {
				// Stream already broken; abandon it, no late error frame.
				return
			}
			flusher.Flush()
			transport.touch()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		http.Error(w, sessionErrorBody, http.StatusBadRequest)
		return
	}
	if err := h.store.Terminate(sessionID); err != nil {
		http.Error(w, sessionErrorBody, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// wantsEventStream checks the Accept header: a client that asks for
// text/event-stream without also accepting application/json gets the
// response as a single-message event stream.
func wantsEventStream(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/event-stream") &&
		!strings.Contains(accept, "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "error", err)
	}
}

func writeEventStream(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, resp); err != nil {
		slog.Error("writing event", "error", err)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeEvent(w io.Writer, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	return err
}

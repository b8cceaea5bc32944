// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/zeebo/blake3"

	"github.com/miniscope/calab/lib/netutil"
	"github.com/miniscope/calab/lib/npy"
)

// MaxParamsSize bounds the body of a params request.
const MaxParamsSize = 1 << 20

// AppName is reported by the status route.
const AppName = "catune"

// Route paths served by the listener.
const (
	PathTraces    = "/api/v1/traces"
	PathMetadata  = "/api/v1/metadata"
	PathStatus    = "/api/v1/status"
	PathHealth    = "/api/v1/health"
	PathHeartbeat = "/api/v1/heartbeat"
	PathParams    = "/api/v1/params"
)

// Metadata is the body of the metadata route.
type Metadata struct {
	SamplingRateHz float64 `json:"sampling_rate_hz"`
	NumCells       int     `json:"num_cells"`
	NumTimepoints  int     `json:"num_timepoints"`
}

// Status is the body of the status route.
type Status struct {
	Ready bool   `json:"ready"`
	App   string `json:"app"`
}

// Ack is the body returned by the heartbeat and params routes.
type Ack struct {
	Status string `json:"status"`
}

// routeKey identifies a route by method and exact path. Any other
// combination is a 404, including a known path with the wrong method.
type routeKey struct {
	method string
	path   string
}

type handler struct {
	session *Session
	logger  *slog.Logger
	routes  map[routeKey]http.Handler

	traces     []byte
	tracesETag string
}

// NewHandler returns the route table for session. The traces payload is
// encoded once here, so every traces request serves identical bytes.
func NewHandler(session *Session, logger *slog.Logger) (http.Handler, error) {
	if session == nil {
		return nil, fmt.Errorf("bridge: session is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	encoded, err := npy.Marshal(session.Traces())
	if err != nil {
		return nil, fmt.Errorf("bridge: encoding traces: %w", err)
	}
	digest := blake3.Sum256(encoded)

	// Compressed traces carry an ETag distinct from the identity encoding.
	compress, err := gzhttp.NewWrapper(gzhttp.SuffixETag("-gzip"))
	if err != nil {
		return nil, fmt.Errorf("bridge: configuring compression: %w", err)
	}

	h := &handler{
		session:    session,
		logger:     logger.With("session_id", session.ID),
		traces:     encoded,
		tracesETag: `"` + hex.EncodeToString(digest[:16]) + `"`,
	}
	h.routes = map[routeKey]http.Handler{
		{http.MethodGet, PathTraces}:     compress(http.HandlerFunc(h.handleTraces)),
		{http.MethodGet, PathMetadata}:   http.HandlerFunc(h.handleMetadata),
		{http.MethodGet, PathStatus}:     http.HandlerFunc(h.handleStatus),
		{http.MethodGet, PathHealth}:     http.HandlerFunc(h.handleHealth),
		{http.MethodPost, PathHeartbeat}: http.HandlerFunc(h.handleHeartbeat),
		{http.MethodPost, PathParams}:    http.HandlerFunc(h.handleParams),
	}
	return h, nil
}

func (h *handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	header := writer.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")

	if request.Method == http.MethodOptions {
		writer.WriteHeader(http.StatusOK)
		return
	}

	route, ok := h.routes[routeKey{request.Method, request.URL.Path}]
	if !ok {
		h.logger.Debug("no route", "method", request.Method, "path", request.URL.Path)
		http.NotFound(writer, request)
		return
	}
	route.ServeHTTP(writer, request)
}

func (h *handler) handleTraces(writer http.ResponseWriter, request *http.Request) {
	header := writer.Header()
	header.Set("Content-Type", "application/octet-stream")
	header.Set("ETag", h.tracesETag)
	writer.WriteHeader(http.StatusOK)

	if _, err := writer.Write(h.traces); err != nil && !netutil.IsExpectedCloseError(err) {
		h.logger.Warn("writing traces failed", "error", err)
		return
	}
	h.logger.Debug("served traces", "bytes", len(h.traces))
}

func (h *handler) handleMetadata(writer http.ResponseWriter, request *http.Request) {
	cells, timepoints := h.session.Dims()
	h.writeJSON(writer, http.StatusOK, Metadata{
		SamplingRateHz: h.session.SamplingRate(),
		NumCells:       cells,
		NumTimepoints:  timepoints,
	})
}

func (h *handler) handleStatus(writer http.ResponseWriter, request *http.Request) {
	h.writeJSON(writer, http.StatusOK, Status{Ready: true, App: AppName})
}

func (h *handler) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/plain")
	writer.WriteHeader(http.StatusOK)
	io.WriteString(writer, "ok")
}

func (h *handler) handleHeartbeat(writer http.ResponseWriter, request *http.Request) {
	at := h.session.Heartbeat()
	h.logger.Debug("heartbeat", "at", at)
	h.writeJSON(writer, http.StatusOK, Ack{Status: "ok"})
}

// handleParams accepts the exported configuration. The body must be a
// JSON object; it is stored verbatim and normalized later by the wait
// loop's caller. Anything else is a 400 and leaves the session untouched.
func (h *handler) handleParams(writer http.ResponseWriter, request *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(writer, request.Body, MaxParamsSize))
	if err != nil {
		h.rejectParams(writer, fmt.Sprintf("reading body: %v", err))
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		h.rejectParams(writer, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if payload == nil {
		h.rejectParams(writer, "body must be a JSON object")
		return
	}

	if h.session.Complete(payload) {
		h.logger.Info("received exported parameters", "keys", len(payload))
	} else {
		h.logger.Info("ignoring repeated parameters export")
	}
	h.writeJSON(writer, http.StatusOK, Ack{Status: "ok"})
}

func (h *handler) rejectParams(writer http.ResponseWriter, reason string) {
	h.logger.Warn("rejected parameters export", "reason", reason)
	h.writeJSON(writer, http.StatusBadRequest, map[string]string{"error": reason})
}

func (h *handler) writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(value); err != nil && !netutil.IsExpectedCloseError(err) {
		h.logger.Warn("writing response failed", "error", err)
	}
}

package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/st-keller/event-counter/registry"
)

// Attribute is the body of a single attribute read.
type Attribute struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Message string `json:"message"`
}

// NewHandler exposes reg:
//
//	GET  /components                              registered names
//	GET  /components/{name}                       checksummed snapshot
//	GET  /components/{name}/attributes/{attr}     one attribute
//	PUT  /components/{name}/attributes/{attr}     write; read-only components ignore it
//	POST /components/{name}/operations/{op}       invoke; unknown operations are no-ops
func NewHandler(reg *registry.Registry, logger slog.Logger) http.Handler {
	h := &handler{reg: reg, log: logger.Named("transport")}

	r := chi.NewRouter()
	r.Route("/components", func(r chi.Router) {
		r.Get("/", h.listComponents)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.collect)
			r.Get("/attributes/{attr}", h.getAttribute)
			r.Put("/attributes/{attr}", h.setAttribute)
			r.Post("/operations/{op}", h.invoke)
		})
	})
	return r
}

// NewServer wraps handler so it is served as HTTP/2 over cleartext as well as
// HTTP/1.1. Use ConfigureTLS to serve mTLS instead.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type handler struct {
	reg *registry.Registry
	log slog.Logger
}

func (h *handler) listComponents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Names())
}

func (h *handler) collect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.reg.Collect(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) getAttribute(w http.ResponseWriter, r *http.Request) {
	name, attr := chi.URLParam(r, "name"), chi.URLParam(r, "attr")
	value, ok, err := h.reg.GetAttribute(name, attr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, Error{Message: "attribute not found: " + attr})
		return
	}
	writeJSON(w, http.StatusOK, Attribute{Name: attr, Value: value})
}

func (h *handler) setAttribute(w http.ResponseWriter, r *http.Request) {
	name, attr := chi.URLParam(r, "name"), chi.URLParam(r, "attr")

	var body Attribute
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, Error{Message: "decode body: " + err.Error()})
		return
	}
	if err := h.reg.SetAttribute(name, attr, body.Value); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) invoke(w http.ResponseWriter, r *http.Request) {
	name, op := chi.URLParam(r, "name"), chi.URLParam(r, "op")

	var args []any
	if r.Body != nil && r.Body != http.NoBody {
		// Chunked bodies report no length, so an empty body shows up as EOF.
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !xerrors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, Error{Message: "decode arguments: " + err.Error()})
			return
		}
	}

	result, err := h.reg.Invoke(r.Context(), name, op, args...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case xerrors.Is(err, registry.ErrNotRegistered):
		writeJSON(w, http.StatusNotFound, Error{Message: err.Error()})
	default:
		h.log.Warn(r.Context(), "introspection request failed",
			slog.F("path", r.URL.Path),
			slog.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Error{Message: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

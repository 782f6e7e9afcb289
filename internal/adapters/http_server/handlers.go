package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"shop_reviews/internal/app"
	"shop_reviews/internal/domain"
	"shop_reviews/internal/schema"
)

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/customers", h.createCustomer)
		r.Get("/customers/{id}", h.getCustomer)
		r.Put("/customers/{id}", h.updateCustomer)
		r.Delete("/customers/{id}", h.deleteCustomer)
		r.Get("/customers/{id}/items", h.customerItems)

		r.Post("/items", h.createItem)
		r.Get("/items/{id}", h.getItem)
		r.Patch("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.deleteItem)

		r.Post("/reviews", h.createReview)
		r.Get("/reviews/{id}", h.getReview)
		r.Patch("/reviews/{id}", h.updateReview)
		r.Delete("/reviews/{id}", h.deleteReview)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem documents.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// selectFormat honours ?format= first, then Accept.
func selectFormat(r *http.Request) string {
	if f := strings.ToLower(r.URL.Query().Get("format")); f != "" {
		return f
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "yaml") {
		return schema.FormatYAML
	}
	return schema.FormatJSON
}

// calcETagAndBody encodes once and hashes once, returning both ETag and body.
func calcETagAndBody(v any, format string) (string, []byte, error) {
	body, err := schema.Encode(v, format)
	if err != nil {
		return "", nil, err
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body, nil
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewInvalidInputError("id", "must be a positive integer")
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return domain.NewInvalidInputError("body", err.Error())
	}
	return nil
}

// respond writes v with an ETag; reads short-circuit on If-None-Match.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	format := selectFormat(r)
	etag, body, err := calcETagAndBody(v, format)
	if err != nil {
		writeProblem(w, http.StatusNotAcceptable, "Not Acceptable", err.Error())
		return
	}
	if r.Method == http.MethodGet {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", schema.ContentType(format))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func created(w http.ResponseWriter, r *http.Request, kind string, id *int64, v any) {
	if id != nil {
		w.Header().Set("Location", fmt.Sprintf("/v1/%s/%d", kind, *id))
	}
	respond(w, r, http.StatusCreated, v)
}

// ---- reads ----

func (h *Handlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := h.Q.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

func (h *Handlers) customerItems(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.Q.CustomerItems(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, http.StatusOK, items)
}

func (h *Handlers) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := h.Q.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := h.Q.GetReview(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

// ---- writes ----

func (h *Handlers) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in app.CustomerInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.C.CreateCustomer(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, r, "customers", c.ID, schema.Customer(c))
}

func (h *Handlers) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in app.CustomerInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.C.UpdateCustomer(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, http.StatusOK, schema.Customer(c))
}

func (h *Handlers) createItem(w http.ResponseWriter, r *http.Request) {
	var in app.ItemInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	i, err := h.C.CreateItem(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, r, "items", i.ID, schema.Item(i))
}

func (h *Handlers) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in app.ItemInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	i, err := h.C.UpdateItem(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, http.StatusOK, schema.Item(i))
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var in app.ReviewInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	rv, err := h.C.CreateReview(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	created(w, r, "reviews", rv.ID, schema.Review(rv))
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var p app.ReviewPatch
	if err := decodeBody(r, &p); err != nil {
		writeError(w, err)
		return
	}
	rv, err := h.C.UpdateReview(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, http.StatusOK, schema.Review(rv))
}

func (h *Handlers) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	h.deleteBy(w, r, h.C.DeleteCustomer)
}

func (h *Handlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	h.deleteBy(w, r, h.C.DeleteItem)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	h.deleteBy(w, r, h.C.DeleteReview)
}

func (h *Handlers) deleteBy(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, id int64) error) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	storefront "github.com/eugener/storefront/internal"
	"github.com/eugener/storefront/internal/app"
)

// --- Products ---

func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, limit := parsePagination(r)
	f := storefront.ProductFilter{Search: q.Get("q"), Offset: offset, Limit: limit}

	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("featured must be true or false"))
			return
		}
		f.Featured = &featured
	}
	if v := q.Get("category"); v != "" {
		cat, err := s.deps.Catalog.GetCategory(r.Context(), v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		f.CategoryID = cat.ID
	}

	products, total, err := s.deps.Catalog.ListProducts(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if products == nil {
		products = []*storefront.Product{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Data:       products,
		Pagination: &pagination{Offset: offset, Limit: limit, Total: total},
	})
}

func (s *server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in app.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.deps.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in app.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.deps.Catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockAdjustRequest struct {
	Delta int `json:"delta"`
}

type stockLevel struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

func (s *server) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockAdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	stock, err := s.deps.Catalog.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockLevel{ID: id, Stock: stock})
}

// --- Stock checks ---

type stockItemsRequest struct {
	Items []storefront.StockItem `json:"items"`
}

type stockCheckResponse struct {
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

// handleValidateStock reports every short or missing item at once, so a
// cart can show all problems in one round trip.
func (s *server) handleValidateStock(w http.ResponseWriter, r *http.Request) {
	var req stockItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.deps.Catalog.ValidateStock(r.Context(), req.Items)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, stockCheckResponse{OK: true})
	case errors.Is(err, storefront.ErrOutOfStock), errors.Is(err, storefront.ErrNotFound):
		writeJSON(w, http.StatusOK, stockCheckResponse{Problems: unwrapJoined(err)})
	default:
		writeError(w, r, err)
	}
}

func (s *server) handleDecrementStock(w http.ResponseWriter, r *http.Request) {
	var req stockItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Catalog.DecrementStock(r.Context(), req.Items); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockCheckResponse{OK: true})
}

// unwrapJoined splits an errors.Join result into its messages.
func unwrapJoined(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs := j.Unwrap()
		out := make([]string, len(errs))
		for i, e := range errs {
			out[i] = e.Error()
		}
		return out
	}
	return []string{err.Error()}
}

// --- Categories ---

func (s *server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []*storefront.Category{}
	}
	writeJSON(w, http.StatusOK, listResponse{Data: cats})
}

func (s *server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Catalog.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in app.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := s.deps.Catalog.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in app.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := s.deps.Catalog.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

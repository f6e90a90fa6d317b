package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/semstore/internal/store"
)

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api/stores", func(r chi.Router) {
		r.Get("/", s.handleListStores)
		r.Post("/", s.handleCreateStore)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetStore)
			r.Put("/", s.handleModifyStore)
			r.Delete("/", s.handleDeleteStore)
			r.Get("/docs", s.handleListDocs)
			r.Post("/docs", s.handleAddDoc)
			r.Post("/query", s.handleQuery)
			r.Route("/docs/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDoc)
				r.Put("/", s.handleUpdateDoc)
				r.Delete("/", s.handleDeleteDoc)
			})
		})
	})
}

type storeJSON struct {
	Name      string         `json:"name"`
	ID        string         `json:"id"`
	Dimension int            `json:"dimension"`
	CreatedAt time.Time      `json:"created_at"`
	Count     int            `json:"count"`
	Metadata  store.Metadata `json:"metadata,omitempty"`
}

type docJSON struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata store.Metadata `json:"metadata,omitempty"`
}

type resultJSON struct {
	docJSON
	Similarity float64 `json:"similarity"`
}

func toStoreJSON(ds *store.DocumentStore) storeJSON {
	return storeJSON{
		Name:      ds.Name(),
		ID:        ds.ID(),
		Dimension: ds.Dimension(),
		CreatedAt: ds.CreatedAt(),
		Count:     ds.Count(),
		Metadata:  ds.Metadata(),
	}
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	out := make([]storeJSON, 0, s.reg.Len())
	for name := range s.reg.Names() {
		ds, err := s.reg.Get(name)
		if err != nil {
			continue // deleted between listing and lookup
		}
		out = append(out, toStoreJSON(ds))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string         `json:"name"`
		Dimension int            `json:"dimension"`
		Metadata  store.Metadata `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ds, err := s.reg.Create(req.Name, req.Dimension, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	writeJSON(w, http.StatusCreated, toStoreJSON(ds))
}

func (s *Server) handleModifyStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string         `json:"name"`
		Metadata *store.Metadata `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	modify := store.ModifyRequest{Name: req.Name, Metadata: req.Metadata}
	if err := s.reg.Modify(chi.URLParam(r, "name"), modify); err != nil {
		writeError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoreJSON(ds))
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Delete(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	docs := ds.Documents()
	out := make([]docJSON, len(docs))
	for i, d := range docs {
		out[i] = docJSON{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddDoc(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		ID       string         `json:"id"`
		Text     string         `json:"text"`
		Metadata store.Metadata `json:"metadata"`
		Upsert   bool           `json:"upsert"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.Upsert {
		err = ds.Upsert(r.Context(), req.ID, req.Text, req.Metadata)
	} else {
		err = ds.Add(r.Context(), req.ID, req.Text, req.Metadata)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := ds.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docJSON{ID: doc.ID, Text: doc.Text, Metadata: doc.Metadata})
}

func (s *Server) handleUpdateDoc(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Text     *string         `json:"text"`
		Metadata *store.Metadata `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	update := store.UpdateRequest{Text: req.Text, Metadata: req.Metadata}
	if err := ds.Update(r.Context(), chi.URLParam(r, "id"), update); err != nil {
		writeError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ds.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Text   string         `json:"text"`
		Limit  *int           `json:"limit"`
		Filter store.Metadata `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	// An absent limit defaults to 10; an explicit 0 means zero results.
	limit := 10
	if req.Limit != nil {
		limit = *req.Limit
	}

	results, err := ds.Query(r.Context(), req.Text, limit, req.Filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]resultJSON, len(results))
	for i, res := range results {
		out[i] = resultJSON{
			docJSON:    docJSON{ID: res.Document.ID, Text: res.Document.Text, Metadata: res.Document.Metadata},
			Similarity: float64(res.Similarity),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// persist runs the save hook, reporting a 500 to the client on failure.
func (s *Server) persist(w http.ResponseWriter) bool {
	if s.save == nil {
		return true
	}
	if err := s.save(s.reg); err != nil {
		http.Error(w, "persisting state: "+err.Error(), http.StatusInternalServerError)
		return false
	}
	return true
}

// writeError maps the store error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateID), errors.Is(err, store.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrProviderUnavailable):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"github.com/m-mizutani/sribot/pkg/catalog"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
)

const uploadPrefix = "uploads/"

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetUMKM(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid umkm id")
		return
	}

	umkm, err := s.catalog.GetUMKM(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "UMKM tidak ditemukan")
		return
	}
	if err != nil {
		logging.From(r.Context()).Error("failed to get umkm", logging.ErrAttr(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, umkm.WithImageURL(s.baseURL))
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Produk tidak ditemukan")
		return
	}
	if err != nil {
		logging.From(r.Context()).Error("failed to get product", logging.ErrAttr(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, product.WithImageURL(s.baseURL))
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || strings.Contains(name, "..") {
		writeError(w, r, http.StatusNotFound, "file not found")
		return
	}

	reader, err := s.storage.Get(r.Context(), uploadPrefix+name)
	if errors.Is(err, adapter.ErrObjectNotFound) || errors.Is(err, adapter.ErrInvalidKey) {
		writeError(w, r, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		logging.From(r.Context()).Error("failed to read upload", logging.ErrAttr(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		logging.From(r.Context()).Error("failed to read upload", logging.ErrAttr(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type memoryEntry struct {
	ID        model.MemoryID `json:"id"`
	Text      string         `json:"text"`
	CreatedAt string         `json:"created_at"`
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	memories, err := s.memories.ListAll(r.Context(), model.NewNamespace(userID))
	if err != nil {
		logging.From(r.Context()).Error("failed to list memories", logging.ErrAttr(err), "user_id", userID)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	entries := make([]memoryEntry, 0, len(memories))
	for _, m := range memories {
		entries = append(entries, memoryEntry{
			ID:        m.ID,
			Text:      m.Text,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"user_id":  userID,
		"count":    len(entries),
		"memories": entries,
	})
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/garnizeh/hireflow/internal/blob"
	"github.com/garnizeh/hireflow/internal/models"
)

// BlobOpener reads stored uploads by reference.
type BlobOpener interface {
	Open(ref string) (*os.File, error)
}

// BlobsHandler lets analyzers download the resume and video they score.
type BlobsHandler struct {
	blobs BlobOpener
}

func NewBlobsHandler(b BlobOpener) *BlobsHandler {
	return &BlobsHandler{blobs: b}
}

func (h *BlobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if h.blobs == nil {
		writeError(w, r, fmt.Errorf("blob %s: %w", ref, models.ErrNotFound))
		return
	}
	f, err := h.blobs.Open(ref)
	switch {
	case errors.Is(err, blob.ErrInvalidRef):
		writeError(w, r, fmt.Errorf("%w: %v", models.ErrValidation, err))
		return
	case errors.Is(err, os.ErrNotExist):
		writeError(w, r, fmt.Errorf("blob %s: %w", ref, models.ErrNotFound))
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}
	// content type follows the stored name's extension
	http.ServeContent(w, r, ref, st.ModTime(), f)
}

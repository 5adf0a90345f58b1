package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/plantcare/internal/careinfo"
	"github.com/dukerupert/plantcare/internal/identify"
	"github.com/dukerupert/plantcare/internal/imagestore"
)

// Identifier names a plant from a photo.
type Identifier interface {
	Configured() bool
	Identify(ctx context.Context, image io.Reader, filename, contentType string) (*identify.Guess, error)
}

type IdentifyHandler struct {
	identifier Identifier
	uploader   imagestore.Uploader
	advisor    *careinfo.Advisor
	logger     *slog.Logger
}

// NewIdentifyHandler creates the photo identification handler. uploader may
// be nil, in which case photos are identified but not stored.
func NewIdentifyHandler(identifier Identifier, uploader imagestore.Uploader, advisor *careinfo.Advisor, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{identifier: identifier, uploader: uploader, advisor: advisor, logger: logger}
}

type identifyResponse struct {
	Guess    *identify.Guess      `json:"guess"`
	ImageURL string               `json:"imageUrl,omitempty"`
	Care     *careinfo.Suggestion `json:"care,omitempty"`
}

// Identify handles POST /api/plants/identify (multipart field "image").
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if !h.identifier.Configured() {
		writeError(w, http.StatusServiceUnavailable, identify.ErrNotConfigured.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imagestore.MaxImageSize+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imagestore.MaxImageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read image")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, imagestore.ErrEmpty.Error())
		return
	}
	if len(data) > imagestore.MaxImageSize {
		writeError(w, http.StatusRequestEntityTooLarge, imagestore.ErrTooLarge.Error())
		return
	}

	contentType := imageContentType(header.Header.Get("Content-Type"), data)

	var resp identifyResponse
	if h.uploader != nil {
		url, err := h.uploader.Upload(r.Context(), bytes.NewReader(data), contentType)
		if err != nil {
			h.logger.Error("upload plant photo", "error", err)
			writeError(w, http.StatusBadGateway, "failed to store image")
			return
		}
		resp.ImageURL = url
	}

	guess, err := h.identifier.Identify(r.Context(), bytes.NewReader(data), header.Filename, contentType)
	if errors.Is(err, identify.ErrNoMatch) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":    err.Error(),
			"imageUrl": resp.ImageURL,
		})
		return
	}
	if err != nil {
		h.logger.Error("identify plant", "error", err)
		writeError(w, http.StatusBadGateway, "plant identification failed")
		return
	}
	resp.Guess = guess

	if h.advisor != nil {
		resp.Care = h.advisor.Suggest(r.Context(), guess.ScientificName, guess.CommonNames...)
	}
	writeJSON(w, http.StatusOK, resp)
}

// imageContentType trusts the part's declared type unless it is missing or
// generic, in which case the bytes are sniffed.
func imageContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}

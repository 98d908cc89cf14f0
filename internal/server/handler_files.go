package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/transport"
)

// ServeFile streams an uploaded blob. Range and HEAD are handled by
// http.ServeContent.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	data, err := h.Storage.BlobStore.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		h.log.Error("blob read failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	http.ServeContent(w, r, path.Base(key), time.Time{}, bytes.NewReader(data))
}

// PDFProxy re-serves a PDF with inline disposition so viewers can embed it.
// Files held by this server are read from the blob store directly.
func (h *Handler) PDFProxy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file URL")
		return
	}

	var data []byte
	if key, ok := h.localKey(r, u); ok {
		data, err = h.Storage.BlobStore.Get(r.Context(), key)
		if errors.Is(err, ErrBlobNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
	} else {
		if u.Scheme != "http" && u.Scheme != "https" {
			writeError(w, http.StatusBadRequest, "Invalid file URL")
			return
		}
		data, err = h.fetchRemote(r.Context(), u.String())
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusRequestTimeout, "Timed out fetching PDF")
			return
		}
	}
	if err != nil {
		h.log.Warn("pdf proxy failed", "url", raw, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to fetch PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\""+path.Base(u.Path)+"\"")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

// localKey reports the blob key when u points at this server's file route.
func (h *Handler) localKey(r *http.Request, u *url.URL) (string, bool) {
	key, ok := strings.CutPrefix(u.Path, transport.PathFiles+"/")
	if !ok || key == "" {
		return "", false
	}
	switch {
	case u.Host == "", u.Host == r.Host:
		return key, true
	case h.cfg.PublicBaseURL != "" && strings.HasPrefix(u.String(), h.cfg.PublicBaseURL+transport.PathFiles+"/"):
		return key, true
	}
	return "", false
}

func (h *Handler) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.ProxyTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.proxy.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("upstream returned " + resp.Status)
	}
	return readLimited(resp.Body, h.cfg.MaxUploadBytes)
}

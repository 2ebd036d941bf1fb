package api

import (
	"bytes"
	"image/png"
	"net/http"
	"strconv"

	"github.com/skip2/go-qrcode"
)

const (
	qrDefaultSize = 256
	qrMaxSize     = 1024
)

// JoinQR renders the session's join link as a PNG for players at the table.
// GET /api/sessions/{id}/qr?size=256
func (h *Handler) JoinQR(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.GetSession(r.Context(), sessionParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	size := qrDefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > qrMaxSize {
			writeError(w, http.StatusBadRequest, "size must be between 64 and 1024", err)
			return
		}
		size = n
	}

	qr, err := qrcode.New(h.joinURL(s.ID), qrcode.Medium)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build QR code", err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode QR code", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

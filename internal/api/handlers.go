package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"finge/pkg/finge"
)

// multipartOverhead leaves room for form boundaries around the image part.
const multipartOverhead = 1 << 20

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) getStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.GetStock(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getStockCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.core.GetStockCard(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, finge.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(finge.MaxImageSize + multipartOverhead); err != nil {
		h.metrics.scans.WithLabelValues("rejected").Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorResponse(w, r, finge.NewError(finge.ErrCodeInvalidInput, "image exceeds 10MB"))
			return
		}
		writeErrorResponse(w, r, finge.WrapError(finge.ErrCodeInvalidInput, "invalid multipart form", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.scans.WithLabelValues("rejected").Inc()
		writeErrorResponse(w, r, finge.NewError(finge.ErrCodeInvalidInput, "missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, finge.MaxImageSize+1))
	if err != nil {
		h.metrics.scans.WithLabelValues("rejected").Inc()
		writeErrorResponse(w, r, finge.WrapError(finge.ErrCodeInvalidInput, "read upload", err))
		return
	}

	result, err := h.core.ScanImage(r.Context(), finge.Image{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	})
	if err != nil {
		h.metrics.scans.WithLabelValues(scanOutcome(err)).Inc()
		writeErrorResponse(w, r, err)
		return
	}
	h.metrics.scans.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

func scanOutcome(err error) string {
	code, ok := finge.CodeOf(err)
	switch {
	case !ok:
		return "failed"
	case code == finge.ErrCodeNotPublic:
		return "not_public"
	case code == finge.ErrCodeInvalidInput:
		return "rejected"
	default:
		return "failed"
	}
}

func (h *handler) listScans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset := normalizeLimitOffset(parseIntDefault(query.Get("limit"), 0), parseIntDefault(query.Get("offset"), 0))
	items, err := h.core.ListScans(r.Context(), limit, offset)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scansResponse{Items: items, Limit: limit, Offset: offset})
}

func (h *handler) getScan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorResponse(w, r, finge.WrapError(finge.ErrCodeInvalidInput, "invalid id", err))
		return
	}
	scan, err := h.core.GetScan(r.Context(), id)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (h *handler) recommendTicker(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.RecommendTicker(r.Context(), h.newRand())
	if err != nil {
		h.metrics.selections.WithLabelValues("ticker", "error").Inc()
		writeErrorResponse(w, r, err)
		return
	}
	h.metrics.selections.WithLabelValues("ticker", "ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) selectCandidate(w http.ResponseWriter, r *http.Request) {
	var payload selectPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeErrorResponse(w, r, finge.WrapError(finge.ErrCodeInvalidInput, "invalid request body", err))
		return
	}
	if err := validatePayload(payload); err != nil {
		writeErrorResponse(w, r, err)
		return
	}

	epsilon := h.epsilon
	if payload.Epsilon != nil {
		epsilon = *payload.Epsilon
	}
	profile := payload.Profile.toProfile()

	var (
		selected finge.Candidate
		source   string
		err      error
	)
	if payload.Catalog != nil {
		catalog := make([]finge.Candidate, 0, len(payload.Catalog))
		for _, entry := range payload.Catalog {
			catalog = append(catalog, entry.toCandidate())
		}
		source = "request"
		selected, err = finge.Select(profile, catalog, epsilon, h.newRand())
	} else {
		source = "catalog"
		selected, err = h.core.RecommendFromCatalog(r.Context(), profile, epsilon, h.newRand())
	}
	if err != nil {
		h.metrics.selections.WithLabelValues(source, "error").Inc()
		writeErrorResponse(w, r, err)
		return
	}
	h.metrics.selections.WithLabelValues(source, "ok").Inc()
	writeJSON(w, http.StatusOK, selectResponse{Selected: selected, Epsilon: epsilon, Source: source})
}

func (h *handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.ListCandidates(r.Context())
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) upsertCatalogEntry(w http.ResponseWriter, r *http.Request) {
	var payload catalogEntryPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeErrorResponse(w, r, finge.WrapError(finge.ErrCodeInvalidInput, "invalid request body", err))
		return
	}
	if err := validatePayload(payload); err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	saved, err := h.core.UpsertCandidate(r.Context(), finge.Candidate{
		Ticker:     chi.URLParam(r, "ticker"),
		Popularity: payload.Popularity,
		Industry:   payload.Industry,
		Features:   payload.Features,
	})
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) deleteCatalogEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.core.DeleteCandidate(r.Context(), chi.URLParam(r, "ticker")); err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func normalizeLimitOffset(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

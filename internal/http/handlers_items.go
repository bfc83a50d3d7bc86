package httpx

import (
	"log/slog"
	"net/http"

	"github.com/lotledger/lotledger/internal/domain/model"
	"github.com/lotledger/lotledger/internal/service"
)

// ItemHandlers serves item and checklist endpoints. Listings are redacted
// for the caller's role before they are written.
type ItemHandlers struct {
	Svc    *service.ItemService
	Logger *slog.Logger
}

func (h *ItemHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *ItemHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.logger(), err)
}

// ListByLot handles GET /api/lots/{id}/items.
func (h *ItemHandlers) ListByLot(w http.ResponseWriter, r *http.Request) {
	lotID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.Svc.ListByLot(r.Context(), requesterFromContext(r.Context()), lotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteOK(w, http.StatusOK, "items", rows)
}

// Mine handles GET /api/items/mine.
func (h *ItemHandlers) Mine(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.Mine(r.Context(), requesterFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteOK(w, http.StatusOK, "items", rows)
}

// Checklist handles GET /api/lots/{id}/checklist.
func (h *ItemHandlers) Checklist(w http.ResponseWriter, r *http.Request) {
	lotID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.Svc.Checklist(r.Context(), requesterFromContext(r.Context()), lotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteOK(w, http.StatusOK, "items", rows)
}

// Create handles POST /api/lots/{id}/items. The owner always comes from the session.
func (h *ItemHandlers) Create(w http.ResponseWriter, r *http.Request) {
	lotID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req model.CreateItemRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	it, err := h.Svc.Create(r.Context(), GetSessionFromContext(r.Context()), lotID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteOK(w, http.StatusCreated, "item", it)
}

// Update handles PUT /api/items/{id}.
func (h *ItemHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req model.UpdateItemRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	it, err := h.Svc.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteOK(w, http.StatusOK, "item", it)
}

// Cancel handles POST /api/items/{id}/cancel.
func (h *ItemHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.Svc.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteOK(w, http.StatusOK, "item", it)
}

// SetChecklist handles PUT /api/items/{id}/checklist.
func (h *ItemHandlers) SetChecklist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req model.SetChecklistRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	it, err := h.Svc.SetChecklist(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteOK(w, http.StatusOK, "item", it)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	deleted, err := h.Svc.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !deleted {
		h.fail(w, r, model.ErrItemNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

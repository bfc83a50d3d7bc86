package httpx

import (
	"log/slog"
	"net/http"

	"github.com/lotledger/lotledger/internal/domain/model"
	"github.com/lotledger/lotledger/internal/service"
)

// LotHandlers serves the lot endpoints.
type LotHandlers struct {
	Svc    *service.LotService
	Logger *slog.Logger
}

func (h *LotHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// List returns the visible lots.
func (h *LotHandlers) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.ListVisible(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusOK, "lots", rows)
}

func (h *LotHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	lot, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusOK, "lot", lot)
}

func (h *LotHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLotRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	lot, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusCreated, "lot", lot)
}

func (h *LotHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	var req model.UpdateLotRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	lot, err := h.Svc.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusOK, "lot", lot)
}

// Lock locks a lot, or unlocks it with ?locked=false.
func (h *LotHandlers) Lock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	locked, err := boolQuery(r, "locked", true)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	lot, err := h.Svc.SetLocked(r.Context(), id, locked)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusOK, "lot", lot)
}

func (h *LotHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	deleted, err := h.Svc.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	if !deleted {
		writeServiceError(w, r, h.logger(), model.ErrLotNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpx

import (
	"log/slog"
	"net/http"

	"github.com/lotledger/lotledger/internal/domain/model"
	"github.com/lotledger/lotledger/internal/service"
)

type BidHandlers struct {
	Svc    *service.BidService
	Logger *slog.Logger
}

func (h *BidHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *BidHandlers) ListByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	rows, err := h.Svc.ListByItem(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusOK, "bids", rows)
}

func (h *BidHandlers) Create(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	var req model.CreateBidRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	bid, err := h.Svc.Create(r.Context(), itemID, req)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusCreated, "bid", bid)
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rl1809/voucher-seckill/internal/core/service"
)

type HTTPHandler struct {
	seckillService *service.SeckillService
}

type SeckillHTTPRequest struct {
	UserID    uint64 `json:"user_id"`
	VoucherID uint64 `json:"voucher_id"`
}

type SeckillHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID uint64 `json:"order_id,omitempty"`
}

func NewHTTPHandler(seckillService *service.SeckillService) *HTTPHandler {
	return &HTTPHandler{seckillService: seckillService}
}

func (h *HTTPHandler) Seckill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SeckillHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SeckillHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if req.UserID == 0 || req.VoucherID == 0 {
		writeJSON(w, http.StatusBadRequest, SeckillHTTPResponse{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	orderID, err := h.seckillService.Purchase(r.Context(), req.VoucherID, req.UserID)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		switch {
		case errors.Is(err, service.ErrVoucherNotFound):
			status = http.StatusNotFound
			message = "voucher not found"
		case errors.Is(err, service.ErrSaleNotStarted):
			status = http.StatusForbidden
			message = "sale has not started"
		case errors.Is(err, service.ErrSaleEnded):
			status = http.StatusForbidden
			message = "sale has ended"
		case errors.Is(err, service.ErrSoldOut):
			status = http.StatusGone
			message = "sold out"
		case errors.Is(err, service.ErrAlreadyOrdered):
			status = http.StatusConflict
			message = "already ordered"
		}

		writeJSON(w, status, SeckillHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	writeJSON(w, http.StatusOK, SeckillHTTPResponse{
		Success: true,
		Message: "order placed successfully",
		OrderID: orderID,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
)

type ErrorResp struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Detail map[string]any `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an engine error to its HTTP status, machine code and detail.
func statusFor(err error) (int, ErrorResp) {
	resp := ErrorResp{Error: err.Error()}

	var (
		nf    *orders.NotFoundError
		st    *orders.StateError
		stock *orders.InsufficientStockError
		over  *orders.OverpaymentError
		forb  *orders.ForbiddenError
		conf  *orders.ConflictError
		inv   *orders.ValidationError
	)
	switch {
	case errors.As(err, &inv):
		resp.Code, resp.Detail = "validation_failed", map[string]any{"field": inv.Field, "reason": inv.Reason}
		return http.StatusBadRequest, resp
	case errors.As(err, &nf):
		resp.Code, resp.Detail = "not_found", map[string]any{"entity": nf.Entity, "id": nf.ID}
		return http.StatusNotFound, resp
	case errors.As(err, &forb):
		resp.Code, resp.Detail = "forbidden", map[string]any{"action": forb.Action, "role": forb.Role}
		return http.StatusForbidden, resp
	case errors.As(err, &conf):
		resp.Code, resp.Detail = "conflict", map[string]any{"key": conf.Key, "reason": conf.Reason}
		return http.StatusConflict, resp
	case errors.As(err, &st):
		resp.Code, resp.Detail = "invalid_state", map[string]any{"entity": st.Entity, "id": st.ID, "status": st.Status, "reason": st.Reason}
		return http.StatusConflict, resp
	case errors.As(err, &stock):
		resp.Code, resp.Detail = "insufficient_stock", map[string]any{
			"product_id": stock.ProductID, "requested": stock.Requested, "available": stock.Available,
		}
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &over):
		resp.Code, resp.Detail = "overpayment", map[string]any{
			"total":     over.Total.StringFixed(2),
			"paid":      over.Paid.StringFixed(2),
			"remaining": over.Remaining.StringFixed(2),
			"attempted": over.Attempted.StringFixed(2),
		}
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = "timeout"
		return http.StatusGatewayTimeout, resp
	}
	resp.Code, resp.Error = "internal", "internal error"
	return http.StatusInternalServerError, resp
}

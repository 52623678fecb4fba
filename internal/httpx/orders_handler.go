package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/go-chi/chi/v5"
)

const (
	HeaderEstablishment = "X-Establishment-Id"
	HeaderActor         = "X-Actor-Id"
	HeaderRole          = "X-Actor-Role"
)

// Engine is the order engine as seen by the transport.
type Engine interface {
	CreateOrder(ctx context.Context, actor orders.Actor, in orders.CreateOrderInput) (orders.OrderView, error)
	AddItems(ctx context.Context, actor orders.Actor, orderID string, in []orders.ItemInput) ([]orders.Item, error)
	UpdateItem(ctx context.Context, actor orders.Actor, orderID, itemID string, patch orders.ItemPatch) (orders.Item, error)
	RemoveItem(ctx context.Context, actor orders.Actor, orderID, itemID string) error
	UpdateItemStatus(ctx context.Context, actor orders.Actor, orderID, itemID string, in orders.ItemStatusInput) (orders.Item, error)
	ApplyPayment(ctx context.Context, actor orders.Actor, orderID string, in orders.PaymentInput) (orders.Payment, error)
	VoidPayment(ctx context.Context, actor orders.Actor, orderID, paymentID, reason string) (orders.Payment, error)
	UpdateOrder(ctx context.Context, actor orders.Actor, orderID string, patch orders.OrderPatch) (orders.OrderView, error)
	DeleteOrder(ctx context.Context, actor orders.Actor, orderID string) error
	// ViewOrder returns the rendered order view and whether it came from the cache.
	ViewOrder(ctx context.Context, actor orders.Actor, orderID string, render func(orders.OrderView) ([]byte, error)) ([]byte, bool, error)
}

type ProductLister interface {
	ListProducts(ctx context.Context, establishmentID string) ([]orders.Product, error)
}

type OrdersHandler struct {
	Engine   Engine
	Products ProductLister
	Log      *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Patch("/", h.updateOrder)
			r.Delete("/", h.deleteOrder)
			r.Post("/items", h.addItems)
			r.Patch("/items/{itemID}", h.updateItem)
			r.Delete("/items/{itemID}", h.removeItem)
			r.Put("/items/{itemID}/status", h.updateItemStatus)
			r.Post("/payments", h.applyPayment)
			r.Post("/payments/{paymentID}/void", h.voidPayment)
		})
	})
}

// actorFrom reads the identity forwarded by the gateway.
func actorFrom(r *http.Request) (orders.Actor, bool) {
	a := orders.Actor{
		ID:              r.Header.Get(HeaderActor),
		Role:            orders.Role(r.Header.Get(HeaderRole)),
		EstablishmentID: r.Header.Get(HeaderEstablishment),
	}
	return a, a.ID != "" && a.EstablishmentID != ""
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Error: "invalid json: " + err.Error(), Code: "invalid_json"})
		return false
	}
	return true
}

func (h *OrdersHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, resp := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.Log.Error("request failed", "action", "http_error", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, resp)
}

// handle wraps a handler that needs the actor and a bounded context.
func (h *OrdersHandler) handle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor orders.Actor) (int, any, error)) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Error: "missing actor headers", Code: "unauthenticated"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	code, body, err := fn(ctx, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if body == nil {
		w.WriteHeader(code)
		return
	}
	writeJSON(w, code, body)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		ps, err := h.Products.ListProducts(ctx, actor.EstablishmentID)
		if err != nil {
			return 0, nil, err
		}
		out := make([]ProductResp, 0, len(ps))
		for _, p := range ps {
			out = append(out, toProductResp(p))
		}
		return http.StatusOK, out, nil
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if !decode(w, r, &req) {
		return
	}
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		v, err := h.Engine.CreateOrder(ctx, actor, orders.CreateOrderInput{
			TableID:    req.TableID,
			WaiterID:   req.WaiterID,
			CustomerID: req.CustomerID,
			Notes:      req.Notes,
			Items:      itemInputs(req.Items),
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toViewResp(v), nil
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Error: "missing actor headers", Code: "unauthenticated"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, hit, err := h.Engine.ViewOrder(ctx, actor, orderID, func(v orders.OrderView) ([]byte, error) {
		return json.Marshal(toViewResp(v))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if hit {
		w.Header().Set("X-Cache", "hit")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderPatchReq
	if !decode(w, r, &req) {
		return
	}
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		v, err := h.Engine.UpdateOrder(ctx, actor, chi.URLParam(r, "id"), orders.OrderPatch{
			Status:     req.Status,
			TableID:    req.TableID,
			WaiterID:   req.WaiterID,
			Notes:      req.Notes,
			CustomerID: req.CustomerID,
			Reason:     req.Reason,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toViewResp(v), nil
	})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		return http.StatusNoContent, nil, h.Engine.DeleteOrder(ctx, actor, chi.URLParam(r, "id"))
	})
}

func (h *OrdersHandler) addItems(w http.ResponseWriter, r *http.Request) {
	var req AddItemsReq
	if !decode(w, r, &req) {
		return
	}
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		items, err := h.Engine.AddItems(ctx, actor, chi.URLParam(r, "id"), itemInputs(req.Items))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toItemResps(items), nil
	})
}

func (h *OrdersHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemPatchReq
	if !decode(w, r, &req) {
		return
	}
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		it, err := h.Engine.UpdateItem(ctx, actor, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req.patch())
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toItemResp(it), nil
	})
}

func (h *OrdersHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		return http.StatusNoContent, nil, h.Engine.RemoveItem(ctx, actor, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	})
}

func (h *OrdersHandler) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	var req ItemStatusReq
	if !decode(w, r, &req) {
		return
	}
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		it, err := h.Engine.UpdateItemStatus(ctx, actor, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"),
			orders.ItemStatusInput{Status: req.Status, Notes: req.Notes, Reason: req.Reason})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toItemResp(it), nil
	})
}

func (h *OrdersHandler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentReq
	if !decode(w, r, &req) {
		return
	}
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		p, err := h.Engine.ApplyPayment(ctx, actor, chi.URLParam(r, "id"), orders.PaymentInput{
			MethodID:  req.MethodID,
			Amount:    req.Amount,
			Reference: req.Reference,
			Notes:     req.Notes,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toPaymentResp(p), nil
	})
}

func (h *OrdersHandler) voidPayment(w http.ResponseWriter, r *http.Request) {
	var req VoidReq
	if !decode(w, r, &req) {
		return
	}
	h.handle(w, r, func(ctx context.Context, actor orders.Actor) (int, any, error) {
		p, err := h.Engine.VoidPayment(ctx, actor, chi.URLParam(r, "id"), chi.URLParam(r, "paymentID"), req.Reason)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toPaymentResp(p), nil
	})
}

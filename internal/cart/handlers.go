package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/scentmarket/internal/common"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Currency string
}

type addItemRequest struct {
	ProductID string  `json:"productId" validate:"required,uuid"`
	VariantID *string `json:"variantId" validate:"omitempty,uuid"`
	Qty       int     `json:"qty" validate:"required,gte=1,lte=99"`
}

type updateItemRequest struct {
	Qty int `json:"qty" validate:"required,gte=1,lte=99"`
}

type itemResponse struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	VendorID  *string `json:"vendorId,omitempty"`
	Title     string  `json:"title"`
	Qty       int     `json:"qty"`
	UnitPrice string  `json:"unitPrice"`
	Subtotal  string  `json:"subtotal"`
}

// Get returns the caller's cart contents and subtotal.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	view, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]itemResponse, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, toItemResponse(it))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"items":     items,
			"itemCount": view.Summary.ItemCount,
			"subtotal":  pricing.Format(view.Summary.Subtotal),
			"currency":  h.Currency,
		},
	})
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req addItemRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	productID := uuid.MustParse(req.ProductID)
	var variantID *uuid.UUID
	if req.VariantID != nil {
		v := uuid.MustParse(*req.VariantID)
		variantID = &v
	}
	item, err := h.Svc.AddItem(r.Context(), userID, productID, variantID, req.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toItemResponse(item)})
}

// UpdateItem changes the quantity of a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var req updateItemRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.UpdateItem(r.Context(), userID, itemID, req.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), userID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("cart item not found", err))
	case errors.Is(err, ErrProductNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	case errors.Is(err, ErrInvalidInput):
		common.WriteError(w, common.BadRequest(err.Error(), err))
	default:
		common.WriteError(w, err)
	}
}

func toItemResponse(it Item) itemResponse {
	resp := itemResponse{
		ID:        it.ID.String(),
		ProductID: it.ProductID.String(),
		Title:     it.Title,
		Qty:       it.Qty,
		UnitPrice: pricing.Format(it.UnitPrice),
		Subtotal:  pricing.Format(pricing.LineSubtotal(it.Qty, it.UnitPrice)),
	}
	if it.VariantID != nil {
		v := it.VariantID.String()
		resp.VariantID = &v
	}
	if it.VendorID != nil {
		v := it.VendorID.String()
		resp.VendorID = &v
	}
	return resp
}

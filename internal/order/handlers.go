package order

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/scentmarket/internal/common"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Handler exposes order endpoints.
type Handler struct {
	Svc *Service
}

// Response is the wire form of an order.
type Response struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Currency  string         `json:"currency"`
	Items     []itemResponse `json:"items"`
	Totals    TotalsResponse `json:"totals"`
	Gift      *giftResponse  `json:"gift,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type itemResponse struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Title     string  `json:"title"`
	Qty       int     `json:"qty"`
	UnitPrice string  `json:"unitPrice"`
	Subtotal  string  `json:"subtotal"`
}

type giftResponse struct {
	WrapTier string `json:"wrapTier"`
	Message  string `json:"message,omitempty"`
}

// TotalsResponse renders a price breakdown with money as two-decimal strings.
type TotalsResponse struct {
	Subtotal         string `json:"subtotal"`
	ItemCount        int    `json:"itemCount"`
	CouponCode       string `json:"couponCode,omitempty"`
	DiscountAmount   string `json:"discountAmount"`
	CoinsUsed        int64  `json:"coinsUsed"`
	CoinValueApplied string `json:"coinValueApplied"`
	TaxAmount        string `json:"taxAmount"`
	ShippingFee      string `json:"shippingFee"`
	GiftFee          string `json:"giftFee"`
	CoinsEarned      int64  `json:"coinsEarned"`
	Total            string `json:"total"`
}

// NewTotalsResponse converts engine totals to their wire form.
func NewTotalsResponse(t pricing.Totals) TotalsResponse {
	return TotalsResponse{
		Subtotal:         pricing.Format(t.Subtotal),
		ItemCount:        t.ItemCount,
		CouponCode:       t.CouponCode,
		DiscountAmount:   pricing.Format(t.DiscountAmount),
		CoinsUsed:        t.CoinsUsed,
		CoinValueApplied: pricing.Format(t.CoinValueApplied),
		TaxAmount:        pricing.Format(t.TaxAmount),
		ShippingFee:      pricing.Format(t.ShippingFee),
		GiftFee:          pricing.Format(t.GiftFee),
		CoinsEarned:      t.CoinsEarned,
		Total:            pricing.Format(t.Total),
	}
}

// NewResponse converts an order to its wire form.
func NewResponse(o Order) Response {
	resp := Response{
		ID:        o.ID.String(),
		Status:    string(o.Status),
		Currency:  o.Currency,
		Items:     make([]itemResponse, 0, len(o.Items)),
		Totals:    NewTotalsResponse(o.Totals),
		CreatedAt: o.CreatedAt,
	}
	for _, it := range o.Items {
		ir := itemResponse{
			ProductID: it.ProductID.String(),
			Title:     it.Title,
			Qty:       it.Qty,
			UnitPrice: pricing.Format(it.UnitPrice),
			Subtotal:  pricing.Format(it.Subtotal),
		}
		if it.VariantID != nil {
			v := it.VariantID.String()
			ir.VariantID = &v
		}
		resp.Items = append(resp.Items, ir)
	}
	if o.Gift.IsGift {
		resp.Gift = &giftResponse{WrapTier: string(o.Gift.WrapTier), Message: o.Gift.Message}
	}
	return resp
}

// Get returns one of the caller's orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Svc.GetForUser(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": NewResponse(o)})
}

// Confirm moves a pending order to CONFIRMED. Admin only. Repeating it on a
// confirmed order re-publishes order.confirmed.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Svc.Confirm(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":          o.ID.String(),
		"status":      string(o.Status),
		"coinsEarned": o.Totals.CoinsEarned,
	}})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("order not found", err))
	case errors.Is(err, ErrEventPending):
		common.JSONError(w, http.StatusServiceUnavailable, "CONFIRMATION_EVENT_PENDING",
			"order confirmed; retry to schedule the loyalty credit", nil)
	case errors.Is(err, ErrInvalidState):
		common.WriteError(w, common.NewAppError("INVALID_STATE", "order is not pending payment", http.StatusConflict, err))
	default:
		common.WriteError(w, err)
	}
}

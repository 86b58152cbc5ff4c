package checkout

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/scentmarket/internal/common"
	"github.com/noah-isme/scentmarket/internal/coupon"
	"github.com/noah-isme/scentmarket/internal/lock"
	"github.com/noah-isme/scentmarket/internal/order"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Handler exposes quote and checkout endpoints.
type Handler struct {
	Svc *Service
}

type checkoutRequest struct {
	CouponCode  string       `json:"couponCode" validate:"omitempty,max=64"`
	RedeemCoins int64        `json:"redeemCoins" validate:"gte=0"`
	Gift        *giftRequest `json:"gift"`
}

type giftRequest struct {
	WrapTier string `json:"wrapTier"`
	Message  string `json:"message"`
}

func (r checkoutRequest) toRequest() Request {
	req := Request{CouponCode: r.CouponCode, RedeemCoins: r.RedeemCoins}
	if r.Gift != nil {
		req.Gift = pricing.GiftOption{
			IsGift:   true,
			WrapTier: pricing.WrapTier(strings.ToUpper(strings.TrimSpace(r.Gift.WrapTier))),
			Message:  r.Gift.Message,
		}
	}
	return req
}

// Quote prices the caller's cart without placing an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var body checkoutRequest
	if err := common.DecodeAndValidate(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	quote, err := h.Svc.Quote(r.Context(), userID, body.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"currency": h.Svc.Currency,
		"totals":   order.NewTotalsResponse(quote.Totals),
	}})
}

// Checkout places an order for the caller's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var body checkoutRequest
	if err := common.DecodeAndValidate(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Svc.Create(r.Context(), userID, body.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": order.NewResponse(created)})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.WriteError(w, common.NewAppError("EMPTY_CART", "cart is empty", http.StatusUnprocessableEntity, err))
	case errors.Is(err, coupon.ErrNotFound):
		common.WriteError(w, common.NewAppError("COUPON_NOT_FOUND", "coupon not found", http.StatusUnprocessableEntity, err))
	case errors.Is(err, ErrConflict):
		common.WriteError(w, common.Conflict("checkout conflicted with a concurrent update, please retry", err))
	case errors.Is(err, lock.ErrNotAcquired):
		common.WriteError(w, common.NewAppError("CHECKOUT_IN_PROGRESS", "another checkout is in progress", http.StatusConflict, err))
	default:
		common.WriteError(w, err)
	}
}

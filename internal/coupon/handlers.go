package coupon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/scentmarket/internal/common"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// LineSource yields the caller's current cart lines.
type LineSource interface {
	Lines(ctx context.Context, userID uuid.UUID) ([]pricing.Line, error)
}

// Admin is the store surface used by the administrative endpoints.
type Admin interface {
	GetByCode(ctx context.Context, code string) (Record, error)
	Create(ctx context.Context, c pricing.Coupon) (Record, error)
	Update(ctx context.Context, code string, c pricing.Coupon) (Record, error)
	List(ctx context.Context, limit, offset int) ([]Record, int, error)
}

// Handler exposes coupon preview and administration over HTTP.
type Handler struct {
	Svc   *Service
	Store Admin
	Cart  LineSource
}

type previewRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type definitionPayload struct {
	DiscountType   string           `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue  decimal.Decimal  `json:"discountValue"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount"`
	UsageLimit     *int             `json:"usageLimit" validate:"omitempty,gte=0"`
	StartDate      time.Time        `json:"startDate" validate:"required"`
	EndDate        time.Time        `json:"endDate" validate:"required"`
	IsActive       *bool            `json:"isActive"`
	VendorID       *string          `json:"vendorId" validate:"omitempty,uuid"`
}

type createPayload struct {
	Code string `json:"code" validate:"required,max=64"`
	definitionPayload
}

type previewResponse struct {
	Code           string `json:"code"`
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	Message        string `json:"message,omitempty"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discountAmount"`
	FinalAmount    string `json:"finalAmount"`
}

type couponResponse struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	DiscountType   string    `json:"discountType"`
	DiscountValue  string    `json:"discountValue"`
	MinOrderAmount *string   `json:"minOrderAmount,omitempty"`
	MaxDiscount    *string   `json:"maxDiscount,omitempty"`
	UsageLimit     *int      `json:"usageLimit,omitempty"`
	UsageCount     int       `json:"usageCount"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	IsActive       bool      `json:"isActive"`
	VendorID       *string   `json:"vendorId,omitempty"`
	Version        int64     `json:"version"`
}

// Preview evaluates a coupon against the caller's cart without committing.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req previewRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := h.Cart.Lines(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, lines)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := previewResponse{
		Code:           result.Code,
		Valid:          result.Valid,
		Reason:         result.Reason,
		Subtotal:       pricing.Format(result.Subtotal),
		DiscountAmount: pricing.Format(result.DiscountAmount),
		FinalAmount:    pricing.Format(result.FinalAmount),
	}
	if result.Err != nil {
		resp.Message = result.Err.Error()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

// Create inserts a new coupon definition.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	def, err := payload.toCoupon(NormalizeCode(payload.Code))
	if err != nil {
		common.WriteError(w, common.BadRequest(err.Error(), err))
		return
	}
	rec, err := h.Store.Create(r.Context(), def)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(rec)})
}

// Update replaces the definition of an existing coupon.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(chi.URLParam(r, "code"))
	var payload definitionPayload
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	def, err := payload.toCoupon(code)
	if err != nil {
		common.WriteError(w, common.BadRequest(err.Error(), err))
		return
	}
	rec, err := h.Store.Update(r.Context(), code, def)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(rec)})
}

// Get returns a coupon by code.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetByCode(r.Context(), NormalizeCode(chi.URLParam(r, "code")))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(rec)})
}

// List returns coupons page by page.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	recs, total, err := h.Store.List(r.Context(), perPage, common.Offset(page, perPage))
	if err != nil {
		writeError(w, err)
		return
	}
	data := make([]couponResponse, 0, len(recs))
	for _, rec := range recs {
		data = append(data, toResponse(rec))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       data,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

func (p definitionPayload) toCoupon(code string) (pricing.Coupon, error) {
	c := pricing.Coupon{
		Code:           code,
		DiscountType:   pricing.DiscountType(p.DiscountType),
		DiscountValue:  p.DiscountValue,
		MinOrderAmount: p.MinOrderAmount,
		MaxDiscount:    p.MaxDiscount,
		UsageLimit:     p.UsageLimit,
		StartDate:      p.StartDate.UTC(),
		EndDate:        p.EndDate.UTC(),
		IsActive:       true,
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if p.VendorID != nil {
		id, err := uuid.Parse(*p.VendorID)
		if err != nil {
			return pricing.Coupon{}, err
		}
		c.VendorID = &id
	}
	for _, amount := range []*decimal.Decimal{&c.DiscountValue, c.MinOrderAmount, c.MaxDiscount} {
		if amount != nil && !pricing.IsCurrencyPrecise(*amount) {
			return pricing.Coupon{}, errors.New("amounts must have at most two decimal places")
		}
	}
	if err := c.Check(); err != nil {
		return pricing.Coupon{}, err
	}
	return c, nil
}

func toResponse(rec Record) couponResponse {
	c := rec.Coupon
	resp := couponResponse{
		ID:            rec.ID.String(),
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: pricing.Format(c.DiscountValue),
		UsageLimit:    c.UsageLimit,
		UsageCount:    c.UsageCount,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		IsActive:      c.IsActive,
		Version:       rec.Version,
	}
	if c.MinOrderAmount != nil {
		s := pricing.Format(*c.MinOrderAmount)
		resp.MinOrderAmount = &s
	}
	if c.MaxDiscount != nil {
		s := pricing.Format(*c.MaxDiscount)
		resp.MaxDiscount = &s
	}
	if c.VendorID != nil {
		s := c.VendorID.String()
		resp.VendorID = &s
	}
	return resp
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("coupon not found", err))
	case errors.Is(err, ErrDuplicateCode):
		common.WriteError(w, common.Conflict("coupon code already exists", err))
	case errors.Is(err, ErrConflict):
		common.WriteError(w, common.Conflict("coupon was modified concurrently", err))
	default:
		common.WriteError(w, err)
	}
}

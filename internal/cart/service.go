package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/scentmarket/internal/pricing"
)

var (
	// ErrNotFound indicates the user has no cart yet.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a line does not belong to the caller's cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrProductNotFound is returned when the product or variant is unknown or out of stock.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the persistence surface used by Service. Store implements it.
type Repository interface {
	EnsureCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ListItems(ctx context.Context, userID uuid.UUID) ([]Item, error)
	LookupProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (Product, error)
	UpsertItem(ctx context.Context, cartID uuid.UUID, p Product, qty int) (Item, error)
	UpdateQty(ctx context.Context, userID, itemID uuid.UUID, qty int) error
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

// View is a cart with its aggregated subtotal.
type View struct {
	Items   []Item
	Summary pricing.CartSummary
}

// Service encapsulates cart domain operations.
type Service struct {
	Repo Repository
}

// Get returns the caller's cart. A user without a cart sees an empty one.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (View, error) {
	if s == nil || s.Repo == nil {
		return View{}, errors.New("cart service not configured")
	}
	items, err := s.Repo.ListItems(ctx, userID)
	if err != nil {
		return View{}, err
	}
	summary, err := pricing.Aggregate(Lines(items))
	if err != nil {
		return View{}, err
	}
	return View{Items: items, Summary: summary}, nil
}

// AddItem snapshots the product's current price onto the cart.
func (s *Service) AddItem(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID, qty int) (Item, error) {
	if s == nil || s.Repo == nil {
		return Item{}, errors.New("cart service not configured")
	}
	if qty <= 0 {
		return Item{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	product, err := s.Repo.LookupProduct(ctx, productID, variantID)
	if err != nil {
		return Item{}, err
	}
	cartID, err := s.Repo.EnsureCart(ctx, userID)
	if err != nil {
		return Item{}, err
	}
	return s.Repo.UpsertItem(ctx, cartID, product, qty)
}

// UpdateItem replaces the quantity of a line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) error {
	if s == nil || s.Repo == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	return s.Repo.UpdateQty(ctx, userID, itemID, qty)
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	if s == nil || s.Repo == nil {
		return errors.New("cart service not configured")
	}
	return s.Repo.RemoveItem(ctx, userID, itemID)
}

// Lines returns the caller's cart as engine input.
func (s *Service) Lines(ctx context.Context, userID uuid.UUID) ([]pricing.Line, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("cart service not configured")
	}
	items, err := s.Repo.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Lines(items), nil
}

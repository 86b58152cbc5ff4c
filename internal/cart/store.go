package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Item is a persisted cart line with its display title.
type Item struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	VariantID *uuid.UUID      `json:"variantId,omitempty"`
	VendorID  *uuid.UUID      `json:"vendorId,omitempty"`
	Title     string          `json:"title"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Product is the catalog snapshot copied onto a cart line when it is added.
type Product struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	VendorID  *uuid.UUID
	Title     string
	Price     decimal.Decimal
}

// Lines converts persisted items into engine input, preserving order.
func Lines(items []Item) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			VendorID:  it.VendorID,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}
	return lines
}

// Store reads and writes carts. DB may be a pool or a transaction.
type Store struct {
	DB db.DBTX
}

// EnsureCart returns the user's cart id, creating the cart on first use.
func (s Store) EnsureCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	const q = `
INSERT INTO carts (id, user_id) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
RETURNING id`
	var id uuid.UUID
	if err := s.DB.QueryRow(ctx, q, uuid.New(), userID).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("ensure cart: %w", err)
	}
	return id, nil
}

// LockCart takes a row lock on the user's cart for the rest of the transaction.
func (s Store) LockCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.DB.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if db.IsNoRows(err) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lock cart: %w", err)
	}
	return id, nil
}

// ListItems returns the lines of the user's cart in insertion order.
func (s Store) ListItems(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	const q = `
SELECT ci.id, ci.product_id, ci.variant_id, ci.vendor_id, ci.title, ci.qty, ci.unit_price
FROM cart_items ci
JOIN carts c ON c.id = ci.cart_id
WHERE c.user_id = $1
ORDER BY ci.created_at, ci.id`
	rows, err := s.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.VendorID, &it.Title, &it.Qty, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// LookupProduct resolves the current title, vendor and price of a product or
// one of its variants.
func (s Store) LookupProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (Product, error) {
	p := Product{ProductID: productID, VariantID: variantID}
	var err error
	if variantID == nil {
		err = s.DB.QueryRow(ctx,
			`SELECT vendor_id, title, price FROM products WHERE id = $1 AND in_stock`,
			productID).Scan(&p.VendorID, &p.Title, &p.Price)
	} else {
		err = s.DB.QueryRow(ctx, `
SELECT p.vendor_id, p.title || ' ' || v.name, v.price
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1 AND v.product_id = $2 AND p.in_stock`,
			*variantID, productID).Scan(&p.VendorID, &p.Title, &p.Price)
	}
	if err != nil {
		if db.IsNoRows(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("lookup product: %w", err)
	}
	return p, nil
}

// UpsertItem adds qty of a product to the cart, merging with an existing line.
func (s Store) UpsertItem(ctx context.Context, cartID uuid.UUID, p Product, qty int) (Item, error) {
	const q = `
INSERT INTO cart_items (id, cart_id, product_id, variant_id, vendor_id, title, qty, unit_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (cart_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid))
DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, unit_price = EXCLUDED.unit_price, title = EXCLUDED.title
RETURNING id, product_id, variant_id, vendor_id, title, qty, unit_price`
	var it Item
	err := s.DB.QueryRow(ctx, q, uuid.New(), cartID, p.ProductID, p.VariantID, p.VendorID, p.Title, qty, p.Price).
		Scan(&it.ID, &it.ProductID, &it.VariantID, &it.VendorID, &it.Title, &it.Qty, &it.UnitPrice)
	if err != nil {
		return Item{}, fmt.Errorf("upsert cart item: %w", err)
	}
	return it, nil
}

// UpdateQty sets the quantity of one line in the user's cart.
func (s Store) UpdateQty(ctx context.Context, userID, itemID uuid.UUID, qty int) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE cart_items SET qty = $3
WHERE id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`, userID, itemID, qty)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// RemoveItem deletes one line from the user's cart.
func (s Store) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, `
DELETE FROM cart_items
WHERE id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`, userID, itemID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Clear empties a cart after its lines have been turned into an order.
func (s Store) Clear(ctx context.Context, cartID uuid.UUID) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

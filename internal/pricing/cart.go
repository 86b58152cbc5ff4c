package pricing

import "github.com/google/uuid"

// Line is an immutable snapshot of a cart line taken at computation time.
type Line struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	VendorID  *uuid.UUID
	Qty       int
	UnitPrice Money
}

// CartSummary aggregates the cart lines.
type CartSummary struct {
	Subtotal  Money
	ItemCount int
}

// Aggregate sums the cart into a subtotal and item count. The first invalid
// line, in cart order, is reported. An empty cart yields a zero subtotal.
func Aggregate(lines []Line) (CartSummary, error) {
	subtotal := zero
	count := 0
	for i, line := range lines {
		if line.Qty < 1 {
			return CartSummary{}, stageError(StageCart, ErrInvalidQuantity, "lines.qty", i, "")
		}
		if line.UnitPrice.IsNegative() {
			return CartSummary{}, stageError(StageCart, ErrInvalidPrice, "lines.unitPrice", i, "")
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimalFromInt(line.Qty)))
		count += line.Qty
	}
	return CartSummary{Subtotal: Round2(subtotal), ItemCount: count}, nil
}

// LineSubtotal is qty × unitPrice rounded to currency precision.
func LineSubtotal(qty int, unitPrice Money) Money {
	return Round2(unitPrice.Mul(decimalFromInt(qty)))
}

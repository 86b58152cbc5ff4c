package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scentmarket/internal/common"
)

type memoryRepo struct {
	cartID   uuid.UUID
	products map[uuid.UUID]Product
	items    []Item
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{cartID: uuid.New(), products: map[uuid.UUID]Product{}}
}

func (m *memoryRepo) EnsureCart(context.Context, uuid.UUID) (uuid.UUID, error) {
	return m.cartID, nil
}

func (m *memoryRepo) ListItems(context.Context, uuid.UUID) ([]Item, error) {
	return append([]Item(nil), m.items...), nil
}

func (m *memoryRepo) LookupProduct(_ context.Context, productID uuid.UUID, _ *uuid.UUID) (Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *memoryRepo) UpsertItem(_ context.Context, _ uuid.UUID, p Product, qty int) (Item, error) {
	for i := range m.items {
		if m.items[i].ProductID == p.ProductID {
			m.items[i].Qty += qty
			return m.items[i], nil
		}
	}
	it := Item{ID: uuid.New(), ProductID: p.ProductID, VendorID: p.VendorID, Title: p.Title, Qty: qty, UnitPrice: p.Price}
	m.items = append(m.items, it)
	return it, nil
}

func (m *memoryRepo) UpdateQty(_ context.Context, _ uuid.UUID, itemID uuid.UUID, qty int) error {
	for i := range m.items {
		if m.items[i].ID == itemID {
			m.items[i].Qty = qty
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *memoryRepo) RemoveItem(_ context.Context, _ uuid.UUID, itemID uuid.UUID) error {
	for i := range m.items {
		if m.items[i].ID == itemID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func newTestHandler(repo *memoryRepo) (*Handler, http.Handler, uuid.UUID) {
	h := &Handler{Svc: &Service{Repo: repo}, Currency: "USD"}
	userID := uuid.New()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithUserID(req.Context(), userID.String())))
		})
	})
	r.Get("/cart", h.Get)
	r.Post("/cart/items", h.AddItem)
	r.Patch("/cart/items/{itemId}", h.UpdateItem)
	r.Delete("/cart/items/{itemId}", h.RemoveItem)
	return h, r, userID
}

func TestAddItemAndGetCart(t *testing.T) {
	repo := newMemoryRepo()
	productID := uuid.New()
	repo.products[productID] = Product{ProductID: productID, Title: "Oud Noir 50ml", Price: decimal.RequireFromString("49.99")}
	_, router, _ := newTestHandler(repo)

	body := `{"productId":"` + productID.String() + `","qty":2}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Items     []itemResponse `json:"items"`
			ItemCount int            `json:"itemCount"`
			Subtotal  string         `json:"subtotal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, "99.98", resp.Data.Subtotal)
	require.Equal(t, "99.98", resp.Data.Items[0].Subtotal)
	require.Equal(t, 2, resp.Data.ItemCount)
}

func TestAddItemValidation(t *testing.T) {
	_, router, _ := newTestHandler(newMemoryRepo())
	cases := map[string]string{
		"zero qty":       `{"productId":"` + uuid.NewString() + `","qty":0}`,
		"bad product id": `{"productId":"nope","qty":1}`,
		"malformed":      `{"productId":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestAddUnknownProduct(t *testing.T) {
	_, router, _ := newTestHandler(newMemoryRepo())
	rr := httptest.NewRecorder()
	body := `{"productId":"` + uuid.NewString() + `","qty":1}`
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body)))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	repo := newMemoryRepo()
	item := Item{ID: uuid.New(), ProductID: uuid.New(), Title: "Vetiver", Qty: 1, UnitPrice: decimal.NewFromInt(30)}
	repo.items = []Item{item}
	_, router, _ := newTestHandler(repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/cart/items/"+item.ID.String(), strings.NewReader(`{"qty":3}`)))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 3, repo.items[0].Qty)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/cart/items/"+item.ID.String(), nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, repo.items)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/cart/items/"+item.ID.String(), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetRequiresUser(t *testing.T) {
	h := &Handler{Svc: &Service{Repo: newMemoryRepo()}}
	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLinesPreservesOrderAndVendor(t *testing.T) {
	vendor := uuid.New()
	items := []Item{
		{ProductID: uuid.New(), Qty: 1, UnitPrice: decimal.NewFromInt(10)},
		{ProductID: uuid.New(), VendorID: &vendor, Qty: 2, UnitPrice: decimal.NewFromInt(5)},
	}
	lines := Lines(items)
	require.Len(t, lines, 2)
	require.Nil(t, lines[0].VendorID)
	require.Equal(t, vendor, *lines[1].VendorID)
	require.Equal(t, 2, lines[1].Qty)
}

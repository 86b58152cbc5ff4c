package common

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scentmarket/internal/pricing"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestWriteErrorPricing(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &pricing.Error{Stage: pricing.StageCart, Err: pricing.ErrInvalidQuantity, Field: "lines.qty", Index: 2}
	WriteError(rec, err)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "INVALID_QUANTITY", body.Code)
	details := body.Details.(map[string]any)
	require.Equal(t, "cart", details["stage"])
	require.Equal(t, "lines.qty", details["field"])
	require.EqualValues(t, 2, details["index"])
}

func TestWriteErrorAppErrorAndFallback(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NotFound("coupon not found", errors.New("no rows")))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("dial tcp: refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "INTERNAL", body.Code)
	require.NotContains(t, body.Message, "dial tcp")
}

func TestRolesOnContext(t *testing.T) {
	ctx := WithRoles(context.Background(), []string{"customer", "admin"})
	require.True(t, HasRole(ctx, "admin"))
	require.False(t, HasRole(context.Background(), "admin"))
}

func TestIdempotencyReplayAndRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusCreated
	calls := 0
	handler := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.Header.Set("Idempotency-Key", "abc")
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, 1, calls)

	mr.FlushAll()
	status = http.StatusInternalServerError
	require.Equal(t, http.StatusInternalServerError, send())
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, 3, calls)
}

func TestIdempotencyReleasesRejectedRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	statuses := []int{http.StatusConflict, http.StatusUnprocessableEntity, http.StatusCreated, http.StatusCreated}
	calls := 0
	handler := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statuses[calls])
		calls++
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.Header.Set("Idempotency-Key", "retry-me")
		req = req.WithContext(WithUserID(req.Context(), "user-2"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusConflict, send().Code)
	require.Equal(t, http.StatusUnprocessableEntity, send().Code)
	require.Equal(t, http.StatusCreated, send().Code)

	replay := send()
	require.Equal(t, http.StatusConflict, replay.Code)
	require.Contains(t, replay.Body.String(), "IDEMPOTENT_REPLAY")
	require.Equal(t, 3, calls)
}

type decodeTarget struct {
	Code string `json:"code" validate:"required,max=8"`
	Qty  int    `json:"qty" validate:"gte=1"`
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"SUMMER","qty":2}`))
	var ok decodeTarget
	require.NoError(t, DecodeAndValidate(req, &ok))
	require.Equal(t, "SUMMER", ok.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"","qty":0}`))
	var bad decodeTarget
	err := DecodeAndValidate(req, &bad)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	fields := appErr.Details.(map[string]any)["fields"].(map[string]string)
	require.Equal(t, "required", fields["Code"])
	require.Equal(t, "gte", fields["Qty"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	require.Error(t, DecodeAndValidate(req, &bad))
}

func TestUserUUID(t *testing.T) {
	id := uuid.New()
	got, ok := UserUUID(WithUserID(context.Background(), id.String()))
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = UserUUID(WithUserID(context.Background(), "not-a-uuid"))
	require.False(t, ok)
}

func TestParsePaginationBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=9223372036854775807&limit=5000", nil)
	page, perPage := ParsePagination(req, 20, 100)
	require.Equal(t, MaxPage, page)
	require.Equal(t, 100, perPage)
	require.Positive(t, Offset(page, perPage))

	req = httptest.NewRequest(http.MethodGet, "/?page=-4&limit=0", nil)
	page, perPage = ParsePagination(req, 20, 100)
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)
	require.Zero(t, Offset(page, perPage))
}

// README: Router-level tests for request validation and error mapping.
package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httptransport "sokoni/internal/http"
	"sokoni/internal/modules/dispatch"
	"sokoni/internal/modules/order"
	"sokoni/internal/modules/returns"
	"sokoni/internal/modules/tracking"
	"sokoni/internal/types"
)

// buildTestRouter wires the full route table with nil stores. Every
// request below is rejected by handler or service validation before any
// store method is reached.
func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return httptransport.NewRouter(httptransport.RouterDeps{
		Order:    order.NewService(nil, nil, nil, nil),
		Dispatch: dispatch.NewService(nil, nil, nil, nil, nil, 15*time.Minute),
		Tracking: tracking.NewService(nil, nil),
		Returns:  returns.NewService(nil, nil, nil, nil, 24*time.Hour),
	})
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func money(amount int64) types.Money {
	return types.Money{Amount: amount, Currency: "KES"}
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	r := buildTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateOrder_TotalsMismatch(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "cust-1",
		"items": []map[string]any{{
			"product_id": "prod-1",
			"vendor_id":  "vend-1",
			"name":       "Ceramic mug",
			"unit_price": money(10000),
			"quantity":   2,
		}},
		"subtotal":           money(20000),
		"tax":                money(3200),
		"shipping":           money(5000),
		"discount":           money(0),
		"total":              money(99999),
		"fulfillment_method": "courier",
		"payment_status":     "paid",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateOrder_NoItems(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{
		"customer_id":        "cust-1",
		"items":              []map[string]any{},
		"fulfillment_method": "courier",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSubmitRating_OutOfRange(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/orders/ord-1/rating", map[string]any{
		"product_rating":  0,
		"delivery_rating": 5,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateDispatch_BadCoordinates(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/dispatches", map[string]any{
		"order_id": "ord-1",
		"pickup":   map[string]float64{"lat": 91.0, "lng": 36.8},
		"delivery": map[string]float64{"lat": -1.3, "lng": 36.82},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAssign_MissingCourier(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/dispatches/disp-1/assign", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRecordPing_BadTimestamp(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/dispatches/disp-1/pings", map[string]any{
		"courier_id":  "cour-1",
		"lat":         -1.29,
		"lng":         36.82,
		"recorded_at": "yesterday sometime",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRecordPing_MissingCourier(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/dispatches/disp-1/pings", map[string]any{
		"lat":         -1.29,
		"lng":         36.82,
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestFileReturn_BadResolution(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/orders/ord-1/returns", map[string]any{
		"reason":     "wrong size",
		"resolution": "store-credit",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

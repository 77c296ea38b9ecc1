package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/security"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/movement"
	"stockflow/internal/domain/product"
	"stockflow/internal/infrastructure/auth"
	v1 "stockflow/internal/infrastructure/http/v1"
	"stockflow/internal/infrastructure/http/v1/dto"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
	"stockflow/pkg/numerator"
)

const testSecret = "test-secret"

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
}

func newTestAPI(t *testing.T, mutate ...func(*v1.RouterConfig)) *testAPI {
	t.Helper()

	store := memory.New()
	policy, err := security.NewCELPolicy("")
	require.NoError(t, err)

	jwt := auth.NewJWTService(auth.DefaultJWTConfig(testSecret))
	cfg := v1.RouterConfig{
		Logger:       logger.Nop(),
		JWTValidator: jwt,
		Policy:       policy,
		Products:     product.NewService(store.Products(), store),
		Movements: movement.NewService(movement.ServiceConfig{
			Documents: store.Documents(),
			Products:  store.Products(),
			Ledger:    store.Ledger(),
			TxManager: store,
			Numerator: numerator.New(numerator.NewMemorySequencer(), nil),
			Events:    store,
			Audit:     store,
		}),
		Ledger: ledger.NewService(store.Ledger()),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return &testAPI{t: t, router: v1.NewRouter(cfg), jwt: jwt}
}

func (a *testAPI) token(userID, role string) string {
	a.t.Helper()
	tok, _, err := a.jwt.GenerateAccessToken(userID, role, userID+"@example.com")
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(a.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createProduct(token, sku, warehouse string, qty int64) dto.ProductResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/products", token, dto.CreateProductRequest{
		SKU:             sku,
		Name:            "Product " + sku,
		Warehouse:       warehouse,
		Location:        "A-01",
		OpeningQuantity: qty,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[dto.ProductResponse](a.t, rec)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[dto.ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodGet, "/api/v1/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Actor headers are ignored unless anonymous access is enabled.
	rec = api.do(http.MethodGet, "/api/v1/products", "", nil, middleware.HeaderActorID, "u1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnonymousActorHeaders(t *testing.T) {
	api := newTestAPI(t, func(cfg *v1.RouterConfig) { cfg.AllowAnonymous = true })

	rec := api.do(http.MethodGet, "/api/v1/products", "", nil,
		middleware.HeaderActorID, "dev", middleware.HeaderActorRole, "manager")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProducts(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("clerk-1", "clerk")

	p := api.createProduct(tok, " sku-1 ", "W1", 5)
	assert.Equal(t, "SKU-1", p.SKU)
	assert.Equal(t, int64(5), p.Quantity)
	assert.True(t, p.LowStock)
	require.Len(t, p.StockHistory, 1)

	rec := api.do(http.MethodPost, "/api/v1/products", tok, dto.CreateProductRequest{SKU: "sku-1", Name: "Dup", Warehouse: "W1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_ENTRY", decode[dto.ErrorResponse](t, rec).Code)

	name := "Renamed"
	rec = api.do(http.MethodPatch, "/api/v1/products/"+p.ID, tok, dto.UpdateProductRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decode[dto.ProductResponse](t, rec).Name)

	rec = api.do(http.MethodGet, "/api/v1/products?lowStock=true", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.ListResponse[dto.ProductResponse]](t, rec)
	assert.Equal(t, int64(1), list.TotalCount)

	rec = api.do(http.MethodGet, "/api/v1/products/not-an-id", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiptLifecycle(t *testing.T) {
	api := newTestAPI(t)
	clerk := api.token("clerk-1", "clerk")
	manager := api.token("manager-1", "manager")

	p := api.createProduct(clerk, "SKU-1", "W1", 10)

	rec := api.do(http.MethodPost, "/api/v1/receipts", clerk, dto.CreateReceiptRequest{
		ProductID: p.ID,
		Warehouse: "W1",
		Quantity:  5,
		Supplier:  "ACME",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[dto.DocumentResponse](t, rec)
	assert.Equal(t, "draft", doc.Status)
	assert.Equal(t, "clerk-1", doc.ActorID)
	assert.Contains(t, doc.Number, "REC-")
	assert.Equal(t, "ACME", doc.Supplier)

	for _, status := range []string{"waiting", "ready"} {
		rec = api.do(http.MethodPost, "/api/v1/receipts/"+doc.ID+"/status", clerk, dto.TransitionRequest{Status: status})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// Clerks may not apply documents under the default policy.
	rec = api.do(http.MethodPost, "/api/v1/receipts/"+doc.ID+"/status", clerk, dto.TransitionRequest{Status: "done"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[dto.ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodGet, "/api/v1/products/"+p.ID, clerk, nil)
	assert.Equal(t, int64(10), decode[dto.ProductResponse](t, rec).Quantity)

	rec = api.do(http.MethodPost, "/api/v1/receipts/"+doc.ID+"/status", manager, dto.TransitionRequest{Status: "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[dto.DocumentResponse](t, rec)
	assert.Equal(t, "done", done.Status)
	assert.Equal(t, "manager-1", done.ApproverID)

	rec = api.do(http.MethodGet, "/api/v1/products/"+p.ID, clerk, nil)
	updated := decode[dto.ProductResponse](t, rec)
	assert.Equal(t, int64(15), updated.Quantity)
	assert.Len(t, updated.StockHistory, 2)

	// Applying twice is a transition error, not a second stock change.
	rec = api.do(http.MethodPost, "/api/v1/receipts/"+doc.ID+"/status", manager, dto.TransitionRequest{Status: "done"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[dto.ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodGet, "/api/v1/ledger?productId="+p.ID, clerk, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[dto.ListResponse[dto.LedgerEntryResponse]](t, rec)
	require.Len(t, entries.Items, 1)
	assert.Equal(t, "RECEIPT", entries.Items[0].Action)
	assert.Equal(t, int64(5), entries.Items[0].Delta)
	assert.Equal(t, int64(15), entries.Items[0].QuantityAfter)
	assert.Equal(t, "clerk-1", entries.Items[0].ActorID)
	assert.Equal(t, "manager-1", entries.Items[0].ApproverID)

	rec = api.do(http.MethodGet, "/api/v1/documents/"+doc.ID+"/history", clerk, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]dto.AuditRecordResponse](t, rec)
	require.NotEmpty(t, history)
	assert.Equal(t, "status_change", history[0].Action)
	assert.Equal(t, "done", history[0].Changes["to"])
	assert.Equal(t, "manager-1", history[0].UserID)
	assert.Equal(t, "create", history[len(history)-1].Action)
	assert.Equal(t, "clerk-1", history[len(history)-1].UserID)
}

func TestDocumentKindIsolation(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("clerk-1", "clerk")
	p := api.createProduct(tok, "SKU-1", "W1", 10)

	rec := api.do(http.MethodPost, "/api/v1/receipts", tok, dto.CreateReceiptRequest{
		ProductID: p.ID, Warehouse: "W1", Quantity: 1, Supplier: "ACME",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decode[dto.DocumentResponse](t, rec)

	rec = api.do(http.MethodGet, "/api/v1/deliveries/"+doc.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/receipts/"+doc.ID, tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/documents?kind=receipt", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[dto.ListResponse[dto.DocumentResponse]](t, rec).TotalCount)

	rec = api.do(http.MethodGet, "/api/v1/deliveries", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[dto.ListResponse[dto.DocumentResponse]](t, rec).TotalCount)

	rec = api.do(http.MethodGet, "/api/v1/documents?kind=bogus", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveryPickingAndStockCheck(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("clerk-1", "clerk")
	p := api.createProduct(tok, "SKU-1", "W1", 10)

	rec := api.do(http.MethodPost, "/api/v1/deliveries", tok, dto.CreateDeliveryRequest{
		ProductID: p.ID, Warehouse: "W1", Quantity: 50, DeliveredTo: "Customer", Status: "packing",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "INSUFFICIENT_STOCK", decode[dto.ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodPost, "/api/v1/deliveries", tok, dto.CreateDeliveryRequest{
		ProductID: p.ID, Warehouse: "W1", Quantity: 4, DeliveredTo: "Customer", Status: "picking",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[dto.DocumentResponse](t, rec)

	picked := int64(3)
	rec = api.do(http.MethodPost, "/api/v1/deliveries/"+doc.ID+"/picking", tok, dto.PickingRequest{PickedQuantity: &picked, Location: "B-02"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[dto.DocumentResponse](t, rec)
	require.NotNil(t, updated.PickedQuantity)
	assert.Equal(t, int64(3), *updated.PickedQuantity)
	assert.Equal(t, "B-02", updated.Location)

	packed := int64(1)
	rec = api.do(http.MethodPost, "/api/v1/deliveries/"+doc.ID+"/packing", tok, dto.PackingRequest{PackedQuantity: &packed})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/deliveries/"+doc.ID+"/picking", tok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferCreatesDestination(t *testing.T) {
	api := newTestAPI(t)
	clerk := api.token("clerk-1", "clerk")
	manager := api.token("manager-1", "manager")
	p := api.createProduct(clerk, "SKU-1", "W1", 10)

	rec := api.do(http.MethodPost, "/api/v1/transfers", clerk, dto.CreateTransferRequest{
		ProductID: p.ID, FromWarehouse: "W1", ToWarehouse: "W2", ToLocation: "C-03", Quantity: 4, Status: "ready",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[dto.DocumentResponse](t, rec)
	assert.Equal(t, "W1", doc.FromWarehouse)
	assert.Equal(t, "W2", doc.ToWarehouse)

	rec = api.do(http.MethodPost, "/api/v1/transfers/"+doc.ID+"/status", manager, dto.TransitionRequest{Status: "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/v1/products?warehouse=W2", clerk, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dest := decode[dto.ListResponse[dto.ProductResponse]](t, rec)
	require.Len(t, dest.Items, 1)
	assert.Equal(t, "SKU-1", dest.Items[0].SKU)
	assert.Equal(t, int64(4), dest.Items[0].Quantity)
	assert.Equal(t, "C-03", dest.Items[0].Location)

	rec = api.do(http.MethodGet, "/api/v1/products/"+p.ID, clerk, nil)
	assert.Equal(t, int64(6), decode[dto.ProductResponse](t, rec).Quantity)

	rec = api.do(http.MethodGet, "/api/v1/ledger?documentId="+doc.ID, clerk, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.ListResponse[dto.LedgerEntryResponse]](t, rec).Items, 2)
}

func TestAdjustment(t *testing.T) {
	api := newTestAPI(t)
	clerk := api.token("clerk-1", "clerk")
	admin := api.token("admin-1", "admin")
	p := api.createProduct(clerk, "SKU-1", "W1", 10)

	count := int64(7)
	rec := api.do(http.MethodPost, "/api/v1/adjustments", clerk, dto.CreateAdjustmentRequest{
		ProductID: p.ID, Warehouse: "W1", PhysicalCount: &count, Reason: "cycle count",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[dto.DocumentResponse](t, rec)
	require.NotNil(t, doc.OldStock)
	assert.Equal(t, int64(10), *doc.OldStock)
	assert.Equal(t, int64(7), *doc.NewStock)

	rec = api.do(http.MethodPost, "/api/v1/adjustments/"+doc.ID+"/status", admin, dto.TransitionRequest{Status: "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/v1/ledger?action=ADJUSTMENT", clerk, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[dto.ListResponse[dto.LedgerEntryResponse]](t, rec)
	require.Len(t, entries.Items, 1)
	assert.Equal(t, int64(-3), entries.Items[0].Delta)

	rec = api.do(http.MethodGet, "/api/v1/ledger?action=BOGUS", clerk, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeIdempotency struct {
	mu       sync.Mutex
	replays  map[string]*postgres.IdempotencyReplay
	released []string
}

func (f *fakeIdempotency) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replays[key], nil
}

func (f *fakeIdempotency) CompleteKey(_ context.Context, key string, statusCode int, contentType string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays[key] = &postgres.IdempotencyReplay{StatusCode: statusCode, ContentType: contentType, Body: body}
	return nil
}

func (f *fakeIdempotency) ReleaseKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, key)
	return nil
}

func TestIdempotencyReplay(t *testing.T) {
	store := &fakeIdempotency{replays: map[string]*postgres.IdempotencyReplay{}}
	api := newTestAPI(t, func(cfg *v1.RouterConfig) { cfg.Idempotency = store })
	tok := api.token("clerk-1", "clerk")

	body := dto.CreateProductRequest{SKU: "SKU-1", Name: "Widget", Warehouse: "W1", OpeningQuantity: 3}
	first := api.do(http.MethodPost, "/api/v1/products", tok, body, middleware.HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := api.do(http.MethodPost, "/api/v1/products", tok, body, middleware.HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t,
		decode[dto.ProductResponse](t, first).ID,
		decode[dto.ProductResponse](t, second).ID)

	rec := api.do(http.MethodGet, "/api/v1/products", tok, nil)
	assert.Equal(t, int64(1), decode[dto.ListResponse[dto.ProductResponse]](t, rec).TotalCount)

	// Failures are not replayed.
	rec = api.do(http.MethodPost, "/api/v1/products", tok, body, middleware.HeaderIdempotencyKey, "key-2")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"key-2"}, store.released)
}

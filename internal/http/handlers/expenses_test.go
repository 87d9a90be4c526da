package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/spendtrack/spendtrack/internal/auth"
	"github.com/spendtrack/spendtrack/internal/cache"
	"github.com/spendtrack/spendtrack/internal/domain/expense"
	"github.com/spendtrack/spendtrack/internal/http/handlers"
	"github.com/spendtrack/spendtrack/internal/http/middlewares"
)

// Fake implementation of the handlers.ExpenseStore interface

type fakeExpenseStore struct {
	listFn   func(ctx context.Context, userID int64) ([]expense.Expense, error)
	createFn func(ctx context.Context, userID int64, req expense.CreateExpenseRequest) (expense.Expense, error)
	deleteFn func(ctx context.Context, id, userID int64) error
}

func (f *fakeExpenseStore) ListByUser(ctx context.Context, userID int64) ([]expense.Expense, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID)
	}
	return []expense.Expense{}, nil
}

func (f *fakeExpenseStore) Create(ctx context.Context, userID int64, req expense.CreateExpenseRequest) (expense.Expense, error) {
	if f.createFn != nil {
		return f.createFn(ctx, userID, req)
	}
	return expense.Expense{}, nil
}

func (f *fakeExpenseStore) Delete(ctx context.Context, id, userID int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id, userID)
	}
	return nil
}

// memStore is a stateful store for the multi-step ownership scenarios. It
// mirrors the repo's semantics: list newest date first, delete distinguishes
// missing rows from foreign ones.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]expense.Expense
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, items: map[int64]expense.Expense{}}
}

func (s *memStore) ListByUser(ctx context.Context, userID int64) ([]expense.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []expense.Expense{}

	for _, e := range s.items {
		if e.UserID == userID {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func (s *memStore) Create(ctx context.Context, userID int64, req expense.CreateExpenseRequest) (expense.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := expense.Expense{
		ID:          s.nextID,
		UserID:      userID,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        req.Date,
		Category:    req.Category,
		Location:    req.Location,
		PaymentType: req.PaymentType,
	}

	s.nextID++
	s.items[e.ID] = e

	return e, nil
}

func (s *memStore) Delete(ctx context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]

	if !ok {
		return expense.ErrNotFound
	}

	if e.UserID != userID {
		return expense.ErrNotOwner
	}

	delete(s.items, id)
	return nil
}

// expensesRouter wires the real auth middleware in front of the handler so
// the bearer-token behavior is exercised end to end.
func expensesRouter(store handlers.ExpenseStore, m *auth.Manager) *gin.Engine {
	r := gin.New()

	h := handlers.NewExpensesHandler(store, nil)
	mw := middlewares.NewAuthMiddleware(m)

	protected := r.Group("", mw.RequireAuth())
	protected.GET("/expenses", h.List)
	protected.POST("/expenses", h.Create)
	protected.DELETE("/expenses/:id", h.Delete)

	return r
}

func doJSON(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request

	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestListExpensesKeepsStoreOrdering(t *testing.T) {
	m := testManager()

	token, err := m.IssueSessionToken(1, "a@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	store := &fakeExpenseStore{
		listFn: func(ctx context.Context, userID int64) ([]expense.Expense, error) {
			if userID != 1 {
				t.Fatalf("got user id %d, want 1", userID)
			}
			return []expense.Expense{
				{ID: 3, UserID: 1, Description: "Dinner", Amount: 30, Date: "2024-02-01", Category: "Food", PaymentType: "Cash"},
				{ID: 1, UserID: 1, Description: "Coffee", Amount: 4.5, Date: "2024-01-01", Category: "Food", PaymentType: "Cash"},
			}, nil
		},
	}

	w := doJSON(expensesRouter(store, m), http.MethodGet, "/expenses", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var items []expense.Expense
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("response must be a JSON array: %v body=%s", err, w.Body.String())
	}

	if len(items) != 2 || items[0].ID != 3 || items[1].ID != 1 {
		t.Fatalf("ordering lost: %+v", items)
	}

	// dates must be non-increasing
	for i := 1; i < len(items); i++ {
		if items[i-1].Date < items[i].Date {
			t.Fatalf("dates out of order: %+v", items)
		}
	}
}

func TestExpensesRequireValidBearerToken(t *testing.T) {
	m := testManager()

	expired, err := auth.NewManager("test-secret", -1).IssueSessionToken(1, "a@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	called := false
	store := &fakeExpenseStore{
		listFn: func(ctx context.Context, userID int64) ([]expense.Expense, error) {
			called = true
			return nil, nil
		},
	}
	r := expensesRouter(store, m)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "no token", token: "", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", token: "garbage", wantStatus: http.StatusForbidden},
		{name: "expired token", token: expired, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodGet, "/expenses", tt.token, "")

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if called {
				t.Fatalf("store must never be reached without a valid token")
			}
		})
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	m := testManager()

	token, err := m.IssueSessionToken(1, "a@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	r := expensesRouter(&fakeExpenseStore{}, m)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing fields", body: `{"amount":4.5}`},
		{name: "unknown category", body: `{"description":"Coffee","amount":4.5,"date":"2024-01-01","category":"Bribes","location":"X St","paymentType":"Cash"}`},
		{name: "unknown payment type", body: `{"description":"Coffee","amount":4.5,"date":"2024-01-01","category":"Food","location":"X St","paymentType":"IOU"}`},
		{name: "bad date format", body: `{"description":"Coffee","amount":4.5,"date":"01/01/2024","category":"Food","location":"X St","paymentType":"Cash"}`},
		{name: "non-positive amount", body: `{"description":"Coffee","amount":-1,"date":"2024-01-01","category":"Food","location":"X St","paymentType":"Cash"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/expenses", token, tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestExpenseLifecycleRoundTrip(t *testing.T) {
	m := testManager()

	token, err := m.IssueSessionToken(1, "a@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	r := expensesRouter(newMemStore(), m)

	payload := `{"description":"Coffee","amount":4.5,"date":"2024-01-01","category":"Food","location":"X St","paymentType":"Cash"}`

	w := doJSON(r, http.MethodPost, "/expenses", token, payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got status %d, body=%s", w.Code, w.Body.String())
	}

	var created expense.Expense
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal created record: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("created record must carry the generated id")
	}

	w = doJSON(r, http.MethodGet, "/expenses", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got status %d, body=%s", w.Code, w.Body.String())
	}

	var items []expense.Expense
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to unmarshal list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	got := items[0]
	if got.Description != "Coffee" || got.Amount != 4.5 || got.Date != "2024-01-01" ||
		got.Category != "Food" || got.Location != "X St" || got.PaymentType != "Cash" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	w = doJSON(r, http.MethodDelete, "/expenses/1", token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: got status %d, body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/expenses", token, "")
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Fatalf("list after delete must be empty, got %s", body)
	}
}

func TestDeleteOwnershipIsolation(t *testing.T) {
	m := testManager()

	tokenA, err := m.IssueSessionToken(1, "a@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	tokenB, err := m.IssueSessionToken(2, "b@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	store := newMemStore()
	r := expensesRouter(store, m)

	// one expense each
	w := doJSON(r, http.MethodPost, "/expenses", tokenA, `{"description":"A's lunch","amount":10,"date":"2024-01-01","category":"Food","location":"","paymentType":"Cash"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create A: got status %d, body=%s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodPost, "/expenses", tokenB, `{"description":"B's taxi","amount":20,"date":"2024-01-02","category":"Transportation","location":"","paymentType":"UPI"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create B: got status %d, body=%s", w.Code, w.Body.String())
	}

	// cross deletes must fail and leave both rows intact
	if w = doJSON(r, http.MethodDelete, "/expenses/2", tokenA, ""); w.Code != http.StatusForbidden {
		t.Fatalf("A deleting B's row: got status %d, want 403", w.Code)
	}
	if w = doJSON(r, http.MethodDelete, "/expenses/1", tokenB, ""); w.Code != http.StatusForbidden {
		t.Fatalf("B deleting A's row: got status %d, want 403", w.Code)
	}

	for _, tc := range []struct {
		token string
		want  string
	}{
		{token: tokenA, want: "A's lunch"},
		{token: tokenB, want: "B's taxi"},
	} {
		w = doJSON(r, http.MethodGet, "/expenses", tc.token, "")

		var items []expense.Expense
		if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
			t.Fatalf("failed to unmarshal list: %v", err)
		}
		if len(items) != 1 || items[0].Description != tc.want {
			t.Fatalf("row went missing after cross-delete attempts: %+v", items)
		}
	}

	// missing row vs foreign row stay distinguishable
	if w = doJSON(r, http.MethodDelete, "/expenses/999", tokenA, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing row: got status %d, want 404", w.Code)
	}
	if w = doJSON(r, http.MethodDelete, "/expenses/abc", tokenA, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric id: got status %d, want 400", w.Code)
	}
}

func TestListExpensesStoreFailure(t *testing.T) {
	m := testManager()

	token, err := m.IssueSessionToken(1, "a@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	store := &fakeExpenseStore{
		listFn: func(ctx context.Context, userID int64) ([]expense.Expense, error) {
			return nil, errors.New("db down")
		},
	}

	w := doJSON(expensesRouter(store, m), http.MethodGet, "/expenses", token, "")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500, body=%s", w.Code, w.Body.String())
	}
}

func TestListCacheHitAndInvalidation(t *testing.T) {
	m := testManager()

	token, err := m.IssueSessionToken(1, "a@gmail.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	srv := miniredis.RunT(t)

	listCache := cache.New(cache.Config{Addr: srv.Addr()}, time.Minute, nil)
	t.Cleanup(func() { _ = listCache.Close() })

	store := newMemStore()

	r := gin.New()
	h := handlers.NewExpensesHandler(store, listCache)
	mw := middlewares.NewAuthMiddleware(m)

	protected := r.Group("", mw.RequireAuth())
	protected.GET("/expenses", h.List)
	protected.POST("/expenses", h.Create)
	protected.DELETE("/expenses/:id", h.Delete)

	w := doJSON(r, http.MethodPost, "/expenses", token, `{"description":"Coffee","amount":4.5,"date":"2024-01-01","category":"Food","location":"","paymentType":"Cash"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got status %d, body=%s", w.Code, w.Body.String())
	}

	// first list fills the cache
	w = doJSON(r, http.MethodGet, "/expenses", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got status %d, body=%s", w.Code, w.Body.String())
	}
	if !srv.Exists("expenses:user:1") {
		t.Fatalf("list must populate the cache")
	}

	// a row slipped in behind the handler's back stays invisible while the
	// cached list is live
	if _, err := store.Create(context.Background(), 1, expense.CreateExpenseRequest{
		Description: "Sneaky", Amount: 1, Date: "2024-05-01", Category: "Other", PaymentType: "Cash",
	}); err != nil {
		t.Fatalf("direct store create failed: %v", err)
	}

	w = doJSON(r, http.MethodGet, "/expenses", token, "")

	var items []expense.Expense
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to unmarshal list: %v", err)
	}
	if len(items) != 1 || items[0].Description != "Coffee" {
		t.Fatalf("expected the cached list, got %+v", items)
	}

	// a create through the handler invalidates, so the next list is fresh
	w = doJSON(r, http.MethodPost, "/expenses", token, `{"description":"Dinner","amount":30,"date":"2024-06-01","category":"Food","location":"","paymentType":"Cash"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("second create: got status %d, body=%s", w.Code, w.Body.String())
	}
	if srv.Exists("expenses:user:1") {
		t.Fatalf("create must invalidate the cached list")
	}

	w = doJSON(r, http.MethodGet, "/expenses", token, "")
	items = nil
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to unmarshal list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("fresh list must include all rows, got %+v", items)
	}

	// delete invalidates too
	w = doJSON(r, http.MethodDelete, "/expenses/1", token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: got status %d, body=%s", w.Code, w.Body.String())
	}
	if srv.Exists("expenses:user:1") {
		t.Fatalf("delete must invalidate the cached list")
	}
}

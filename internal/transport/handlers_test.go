package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vitrine/internal/cart"
	"vitrine/internal/domain"
	"vitrine/internal/feed"
	"vitrine/internal/middleware"
	"vitrine/internal/remote"
	"vitrine/internal/review"
	"vitrine/internal/session"
	"vitrine/internal/storage"
)

type fakeCatalog struct {
	products map[int]domain.Product
	fail     bool
}

func (f *fakeCatalog) Products(ctx context.Context, limit, skip int) (*remote.ProductPage, error) {
	if f.fail {
		return nil, errors.New("upstream down")
	}
	var all []domain.Product
	for _, p := range f.products {
		all = append(all, p)
	}
	return &remote.ProductPage{Products: all, Total: len(all), Limit: limit, Skip: skip}, nil
}

func (f *fakeCatalog) Product(ctx context.Context, id int) (*domain.Product, error) {
	if f.fail {
		return nil, errors.New("upstream down")
	}
	p, ok := f.products[id]
	if !ok {
		return nil, errors.New("bad status code: 404")
	}
	return &p, nil
}

func (f *fakeCatalog) Categories(ctx context.Context) ([]string, error) {
	if f.fail {
		return nil, errors.New("upstream down")
	}
	return []string{"beauty", "groceries"}, nil
}

type fakeAuthenticator struct{}

func (fakeAuthenticator) Login(ctx context.Context, username, password string) (*domain.Identity, error) {
	if username != "emilys" || password != "emilyspass" {
		return nil, errors.New("bad status code: 400")
	}
	return &domain.Identity{
		ID:        5,
		FirstName: "Emily",
		LastName:  "Johnson",
		Username:  "emilys",
		Email:     "emily@example.com",
		SessionID: "upstream-token",
	}, nil
}

type fixedFetcher struct{}

func (fixedFetcher) AllUsers(ctx context.Context) ([]domain.FeedUser, error) {
	return []domain.FeedUser{{ID: 5, FirstName: "Emily", Username: "emilys"}}, nil
}

func (fixedFetcher) AllPosts(ctx context.Context) ([]domain.Post, error) {
	return []domain.Post{{ID: 10, Title: "Hello", UserID: 5}}, nil
}

func (fixedFetcher) AllComments(ctx context.Context) ([]domain.Comment, error) {
	return nil, nil
}

func (fixedFetcher) PostsByUser(ctx context.Context, userID int) ([]domain.Post, error) {
	if userID != 5 {
		return nil, nil
	}
	return []domain.Post{{ID: 10, Title: "Hello", UserID: 5}}, nil
}

type testServer struct {
	router   chi.Router
	sessions *session.Store
	catalog  *fakeCatalog
	kv       storage.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	kv := storage.NewMemoryStore(0)
	adapter := storage.NewAdapter(kv, logger)

	sessions := session.New(adapter, logger)
	t.Cleanup(sessions.Reset)

	tokens := session.NewTokenIssuer("test-secret", time.Hour)
	carts := cart.New(kv, sessions, logger)
	feeds := feed.New(kv, fixedFetcher{}, sessions, logger)
	reviews := review.New(kv, logger)

	catalog := &fakeCatalog{products: map[int]domain.Product{
		42: {ID: 42, Title: "Eyeshadow Palette", Price: 19.99},
		7:  {ID: 7, Title: "Dog Food", Price: 10.50},
	}}

	authMW := middleware.AuthMiddleware(tokens, logger)

	router := chi.NewRouter()
	NewAuthHandler(fakeAuthenticator{}, sessions, tokens, logger).RegisterRoutes(router, authMW)
	NewProfileHandler(sessions, feeds, logger).RegisterRoutes(router, authMW)
	NewCartHandler(carts, catalog, logger).RegisterRoutes(router, authMW)
	NewCatalogHandler(catalog, reviews, sessions, logger).RegisterRoutes(router, authMW)
	NewFeedHandler(feeds, logger).RegisterRoutes(router, authMW)

	return &testServer{router: router, sessions: sessions, catalog: catalog, kv: kv}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()

	w := ts.do(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "emilys",
		"password": "emilyspass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login returned no token")
	}
	return resp.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "emilys",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if ts.sessions.Current() != nil {
		t.Error("failed login activated a session")
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "emilys"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLoginActivatesSessionAndIssuesToken(t *testing.T) {
	ts := newTestServer(t)

	ts.login(t)

	identity := ts.sessions.Current()
	if identity == nil || identity.ID != 5 {
		t.Fatalf("session not active: %+v", identity)
	}
}

func TestCartRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/cart"},
		{"POST", "/api/cart/items"},
		{"POST", "/api/cart/checkout"},
		{"GET", "/api/purchases"},
		{"GET", "/api/profile"},
	} {
		w := ts.do(t, route.method, route.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", route.method, route.path, w.Code)
		}
	}
}

func TestAddItemIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	for i := 0; i < 3; i++ {
		w := ts.do(t, "POST", "/api/cart/items", token, map[string]int{"productId": 42})
		if w.Code != http.StatusCreated {
			t.Fatalf("add %d: status = %d, body %s", i, w.Code, w.Body.String())
		}
	}

	var resp CartResponse
	w := ts.do(t, "GET", "/api/cart", token, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("cart response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Quantity != 1 {
		t.Errorf("cart = %+v, want single line with quantity 1", resp.Items)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	w := ts.do(t, "POST", "/api/cart/items", token, map[string]int{"productId": 999})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateQuantityRejectsZero(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	ts.do(t, "POST", "/api/cart/items", token, map[string]int{"productId": 42})

	w := ts.do(t, "PUT", "/api/cart/items/42", token, map[string]int{"quantity": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	w = ts.do(t, "PUT", "/api/cart/items/42", token, map[string]int{"quantity": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp CartResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("cart response: %v", err)
	}
	if resp.Items[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3", resp.Items[0].Quantity)
	}
}

func TestCheckoutRecordsPurchaseAndClearsCart(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	ts.do(t, "POST", "/api/cart/items", token, map[string]int{"productId": 42})
	ts.do(t, "POST", "/api/cart/items", token, map[string]int{"productId": 7})
	ts.do(t, "PUT", "/api/cart/items/7", token, map[string]int{"quantity": 2})

	w := ts.do(t, "POST", "/api/cart/checkout", token, map[string]string{"paymentMethod": "card"})
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d, body %s", w.Code, w.Body.String())
	}

	var purchase domain.Purchase
	if err := json.Unmarshal(w.Body.Bytes(), &purchase); err != nil {
		t.Fatalf("purchase response: %v", err)
	}
	want := 19.99 + 2*10.50
	if purchase.Total != want {
		t.Errorf("total = %v, want %v", purchase.Total, want)
	}

	var cartResp CartResponse
	w = ts.do(t, "GET", "/api/cart", token, nil)
	json.Unmarshal(w.Body.Bytes(), &cartResp)
	if cartResp.Count != 0 {
		t.Errorf("cart count after checkout = %d, want 0", cartResp.Count)
	}

	var purchases []domain.Purchase
	w = ts.do(t, "GET", "/api/purchases", token, nil)
	json.Unmarshal(w.Body.Bytes(), &purchases)
	if len(purchases) != 1 || purchases[0].ID != purchase.ID {
		t.Errorf("purchases = %+v", purchases)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	w := ts.do(t, "POST", "/api/cart/checkout", token, map[string]string{"paymentMethod": "card"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestReviewSubmissionAndMerge(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	w := ts.do(t, "POST", "/api/products/42/reviews", token, map[string]any{
		"rating":  5,
		"comment": "Lovely colors",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("review status = %d, body %s", w.Code, w.Body.String())
	}

	var saved domain.Review
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatalf("review response: %v", err)
	}
	if saved.ID == "" || saved.ProductID != 42 || saved.ReviewerName != "Emily Johnson" {
		t.Errorf("review = %+v", saved)
	}

	var merged []domain.Review
	w = ts.do(t, "GET", "/api/products/42/reviews", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &merged)
	if len(merged) != 1 || merged[0].Comment != "Lovely colors" {
		t.Errorf("merged = %+v", merged)
	}
}

func TestReviewRatingOutOfRange(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	w := ts.do(t, "POST", "/api/products/42/reviews", token, map[string]any{
		"rating":  6,
		"comment": "Too good",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetProductMergesReviews(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	ts.do(t, "POST", "/api/products/42/reviews", token, map[string]any{
		"rating":  4,
		"comment": "Solid",
	})

	var product domain.Product
	w := ts.do(t, "GET", "/api/products/42", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &product)
	if len(product.Reviews) != 1 {
		t.Errorf("reviews = %+v", product.Reviews)
	}
}

func TestCatalogUpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.fail = true

	w := ts.do(t, "GET", "/api/products", "", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestFeedAndComments(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	var bundle domain.FeedBundle
	w := ts.do(t, "GET", "/api/feed", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("feed status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &bundle)
	if len(bundle.Posts) != 1 || bundle.Posts[0].User == nil {
		t.Fatalf("bundle = %+v", bundle)
	}

	w = ts.do(t, "POST", "/api/feed/posts/10/comments", token, map[string]string{"body": "First!"})
	if w.Code != http.StatusCreated {
		t.Fatalf("comment status = %d, body %s", w.Code, w.Body.String())
	}

	var comment domain.Comment
	json.Unmarshal(w.Body.Bytes(), &comment)
	if comment.User.Username != "emilys" || comment.PostID != 10 {
		t.Errorf("comment = %+v", comment)
	}
}

func TestProfileUpdatePersistsSplitRecords(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	w := ts.do(t, "PUT", "/api/profile", token, map[string]any{"firstName": "Emma", "phone": "+1 555 0100"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}

	var resp UpdateProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("update response: %v", err)
	}
	if !resp.Persisted {
		t.Error("update not persisted")
	}

	var profile domain.Profile
	w = ts.do(t, "GET", "/api/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &profile)
	if profile.FirstName != "Emma" || profile.Phone != "+1 555 0100" {
		t.Errorf("profile = %+v", profile)
	}
	if profile.LastUpdated == "" {
		t.Error("profile missing lastUpdated")
	}
}

func TestProfilePostsAndComments(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	var posts []domain.Post
	w := ts.do(t, "GET", "/api/profile/posts", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("posts status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &posts)
	if len(posts) != 1 || posts[0].ID != 10 {
		t.Errorf("posts = %+v", posts)
	}

	w = ts.do(t, "GET", "/api/profile/comments", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("comments status = %d", w.Code)
	}
}

func TestLogoutKeepsCartDropsActivity(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	ts.do(t, "POST", "/api/cart/items", token, map[string]int{"productId": 42})
	ts.do(t, "GET", "/api/profile/posts", token, nil)

	w := ts.do(t, "POST", "/api/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}
	if ts.sessions.Current() != nil {
		t.Error("session still active after logout")
	}

	if _, ok := ts.kv.Get(fmt.Sprintf("cart_%d", 5)); !ok {
		t.Error("cart entry removed by logout")
	}
	if _, ok := ts.kv.Get(fmt.Sprintf("userPosts_%d", 5)); ok {
		t.Error("user posts survived logout")
	}
}

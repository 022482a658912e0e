//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func registerUser(t *testing.T, name string) sessionResponse {
	t.Helper()
	s, err := postSession("/api/users/register", map[string]string{
		"email":    name + "@example.com",
		"username": name,
		"password": name + "-pass",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return *s
}

func TestRegister_Duplicate(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"email":    "shopper@example.com",
		"username": "someone-else",
		"password": "whatever1",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusConflict)
}

func TestLogin_WrongPassword(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "shopper@example.com",
		"password": "not-the-password",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestProfile(t *testing.T) {
	s := registerUser(t, "profiler")

	resp := do(t, http.MethodPut, "/api/users/"+s.User.ID, s.Token, map[string]any{
		"address": map[string]string{"street": "2 Park St", "city": "Kolkata", "state": "WB", "zip": "700016", "country": "IN"},
	})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, http.MethodGet, "/api/users/"+s.User.ID, s.Token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Other shoppers' profiles are off limits, admins may read them.
	resp = do(t, http.MethodGet, "/api/users/"+userID, s.Token, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = do(t, http.MethodGet, "/api/users/"+s.User.ID, adminToken, nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
}

func TestLogout(t *testing.T) {
	s := registerUser(t, "leaver")

	resp := do(t, http.MethodPost, "/api/users/logout", s.Token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, http.MethodGet, "/api/products", s.Token, nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
}

type cartResponse struct {
	UserID string `json:"userId"`
	Items  []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func TestCart(t *testing.T) {
	s := registerUser(t, "cartuser")

	resp := do(t, http.MethodGet, "/api/cart", s.Token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	for range 2 {
		resp = do(t, http.MethodPost, "/api/cart", s.Token, map[string]any{"productId": "p-mug", "quantity": 2})
		expectStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp = do(t, http.MethodPost, "/api/cart", s.Token, map[string]any{"productId": "missing", "quantity": 1})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = do(t, http.MethodGet, "/api/cart", s.Token, nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	cart := decodeJSON[envelope[cartResponse]](t, resp).Data
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 4 {
		t.Fatalf("expected 4 mugs, got %+v", cart.Items)
	}
}

type wishlistResponse struct {
	UserID   string            `json:"userId"`
	Products []productResponse `json:"products"`
}

func TestWishlist(t *testing.T) {
	s := registerUser(t, "wisher")

	resp := do(t, http.MethodPost, "/api/wishlist/add", s.Token, map[string]string{"productId": "p-lamp"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Adding twice keeps a single entry.
	resp = do(t, http.MethodPost, "/api/wishlist/add", s.Token, map[string]string{"productId": "p-lamp"})
	expectStatus(t, resp, http.StatusOK)
	list := decodeJSON[envelope[wishlistResponse]](t, resp).Data
	resp.Body.Close()
	if len(list.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(list.Products))
	}

	resp = do(t, http.MethodPost, "/api/wishlist/remove", s.Token, map[string]string{"productId": "p-lamp"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if list := decodeJSON[envelope[wishlistResponse]](t, resp).Data; len(list.Products) != 0 {
		t.Fatalf("expected empty wishlist, got %d", len(list.Products))
	}
}

package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareIssuesCookie(t *testing.T) {
	var got string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = OwnerIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !isValidAnonID(got) {
		t.Fatalf("Expected generated anon id, got %q", got)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != got || cookies[0].Secure {
		t.Errorf("Unexpected cookies %+v", cookies)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	const id = "anon_0123456789abcdef0123456789abcdef"
	var got string
	h := Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = OwnerIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got != id {
		t.Errorf("Expected %s, got %s", id, got)
	}
	if c := w.Result().Cookies(); len(c) != 1 || !c[0].Secure {
		t.Errorf("Expected refreshed secure cookie, got %+v", c)
	}
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	var got string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = OwnerIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "demo_user"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == "demo_user" || !isValidAnonID(got) {
		t.Errorf("Forged cookie accepted: %q", got)
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	if ip := IPFromRequest(req); ip != "10.0.0.7" {
		t.Errorf("Expected 10.0.0.7, got %s", ip)
	}
}

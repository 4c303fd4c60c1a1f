package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatPageServesIndexForPageRoutes(t *testing.T) {
	h := ChatPage()
	for _, path := range []string{"/", "/index.html", "/sessions/abc"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "WritePal") {
			t.Errorf("%s: expected chat page", path)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-cache" {
			t.Errorf("%s: expected no-cache, got %q", path, got)
		}
	}
}

func TestChatPageNotFound(t *testing.T) {
	h := ChatPage()
	for _, path := range []string{"/api/unknown", "/ws", "/app.js", "/img/logo.png"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestChatPageRejectsWrites(t *testing.T) {
	w := httptest.NewRecorder()
	ChatPage().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

package interceptors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := AccessLog(zap.New(core), map[string]bool{"/healthz": true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, p := range []string{"/login", "/healthz", "/boom"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	first := entries[0].ContextMap()
	if first["path"] != "/login" || first["status"] != int64(200) {
		t.Errorf("first entry = %v, want /login 200", first)
	}
	if entries[1].Level != zap.ErrorLevel {
		t.Errorf("5xx level = %v, want error", entries[1].Level)
	}
}

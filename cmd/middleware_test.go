package main

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subsBridge/utils"
)

func newTestApp(t *testing.T) *application {
	t.Helper()
	tokens, err := utils.NewManager("secret")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &application{
		errorLog: log.New(io.Discard, "", 0),
		infoLog:  log.New(io.Discard, "", 0),
		tokens:   tokens,
	}
}

func TestBridgeAuth(t *testing.T) {
	app := newTestApp(t)
	var caller string
	h := app.bridgeAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ = r.Context().Value(callerKey).(string)
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := app.tokens.NewJWT("shell-1", time.Minute)
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "bearer", header: "Bearer " + token, want: http.StatusNoContent},
		{name: "query token", query: "?token=" + token, want: http.StatusNoContent},
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller = ""
			req := httptest.NewRequest(http.MethodGet, "/billing/entitlements"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusNoContent && caller != "shell-1" {
				t.Errorf("caller = %q", caller)
			}
		})
	}
}

func TestRecoverPanic(t *testing.T) {
	app := newTestApp(t)
	h := app.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get("Connection") != "close" {
		t.Errorf("expected Connection: close")
	}
}

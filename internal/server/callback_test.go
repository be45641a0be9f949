package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type fakeExchanger struct {
	calls []struct{ code, state, errParam string }
	err   error
}

func (f *fakeExchanger) HandleCallback(_ context.Context, code, state, errParam string) error {
	f.calls = append(f.calls, struct{ code, state, errParam string }{code, state, errParam})
	return f.err
}

func TestCallbackHandler(t *testing.T) {
	t.Run("Successful Callback", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		handler := NewCallbackHandler(exchanger)

		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=nonce", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		body, _ := io.ReadAll(rec.Result().Body)
		if !strings.Contains(string(body), "Authorization Successful") {
			t.Error("expected success page in response body")
		}

		if len(exchanger.calls) != 1 {
			t.Fatalf("expected one exchange call, got %d", len(exchanger.calls))
		}
		if exchanger.calls[0].code != "abc" || exchanger.calls[0].state != "nonce" {
			t.Errorf("unexpected call params: %+v", exchanger.calls[0])
		}

		select {
		case result := <-handler.Result():
			if result.Error() != nil {
				t.Errorf("expected nil result error, got %v", result.Error())
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for result")
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		wantErr := errors.New("state mismatch")
		handler := NewCallbackHandler(&fakeExchanger{err: wantErr})

		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=wrong", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if !errors.Is(result.Error(), wantErr) {
			t.Errorf("expected state mismatch error, got %v", result.Error())
		}
	})

	t.Run("Error Param Forwarded", func(t *testing.T) {
		exchanger := &fakeExchanger{err: errors.New("access_denied")}
		handler := NewCallbackHandler(exchanger)

		req := httptest.NewRequest(http.MethodGet, "/callback?error=access_denied", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if exchanger.calls[0].errParam != "access_denied" {
			t.Errorf("expected error param forwarded, got %q", exchanger.calls[0].errParam)
		}
	})

	t.Run("Only First Result Delivered", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		handler := NewCallbackHandler(exchanger)

		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=nonce", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		if len(exchanger.calls) != 3 {
			t.Errorf("every delivery should reach the exchanger, got %d", len(exchanger.calls))
		}

		count := 0
		for range handler.Result() {
			count++
		}
		if count != 1 {
			t.Errorf("expected exactly one result, got %d", count)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method Filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for POST, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for GET, got %d", rec.Code)
		}
	})

	t.Run("Handler Routes Registered", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Logging(log.New(io.Discard)))
		router.Handler(NewCallbackHandler(&fakeExchanger{}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=a&state=b", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 from callback route, got %d", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		router := NewBasicRouter()
		var order []string

		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router.Use(tag("first"), tag("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("unexpected middleware order: %v", order)
		}
	})
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Exchanger completes the authorization code exchange for a callback request.
//
// State validation, replay detection, and token persistence all happen behind
// this interface; the handler is transport glue only.
type Exchanger interface {
	HandleCallback(ctx context.Context, code, state, errParam string) error
}

// CallbackResult carries the outcome of the callback flow to the waiting command.
type CallbackResult struct {
	err error
}

func (r CallbackResult) Error() error {
	return r.err
}

// CallbackHandler receives the OAuth authorization redirect on the loopback server.
// Implements the Handler interface for registration with a Router.
type CallbackHandler struct {
	exchanger  Exchanger
	resultChan chan CallbackResult
	once       sync.Once
}

// NewCallbackHandler creates a callback handler that delegates the exchange to exchanger.
func NewCallbackHandler(exchanger Exchanger) *CallbackHandler {
	return &CallbackHandler{
		exchanger:  exchanger,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the authorization redirect.
//
// The exchanger decides whether a repeated delivery is a replay; browsers and
// some redirect chains deliver the callback more than once, so the handler
// itself stays permissive and only the first result is sent to the waiter.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	errParam := q.Get("error")

	if err := h.exchanger.HandleCallback(r.Context(), code, state, errParam); err != nil {
		h.Send(CallbackResult{err: err})
		http.Error(w, fmt.Sprintf("Authorization failed: %v", err), http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send delivers the callback result to the waiter (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving callback completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the game.</p>
    </div>
</body>
</html>
`

// Package testutil provides helpers for testing generated routes and other
// HTTP handlers of a surface app. It only depends on the standard library and
// go-cmp, so any package can use it without import cycles.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// RequestBuilder builds test HTTP requests.
type RequestBuilder struct {
	method  string
	path    string
	body    []byte
	headers http.Header
	query   url.Values
}

// NewRequest returns a builder for a POST to "/", the method every
// generated route uses.
func NewRequest() *RequestBuilder {
	return &RequestBuilder{
		method:  http.MethodPost,
		path:    "/",
		headers: make(http.Header),
		query:   make(url.Values),
	}
}

// GET sets the method to GET.
func (b *RequestBuilder) GET(path string) *RequestBuilder {
	b.method = http.MethodGet
	b.path = path
	return b
}

// POST sets the method to POST.
func (b *RequestBuilder) POST(path string) *RequestBuilder {
	b.method = http.MethodPost
	b.path = path
	return b
}

// Method sets an arbitrary method.
func (b *RequestBuilder) Method(method, path string) *RequestBuilder {
	b.method = method
	b.path = path
	return b
}

// WithJSON sets the body to v encoded as JSON.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		panic("testutil: encode JSON body: " + err.Error())
	}
	b.body = data
	b.headers.Set("Content-Type", "application/json")
	return b
}

// WithForm sets a form-encoded body.
func (b *RequestBuilder) WithForm(values url.Values) *RequestBuilder {
	b.body = []byte(values.Encode())
	b.headers.Set("Content-Type", "application/x-www-form-urlencoded")
	return b
}

// WithBody sets the raw body.
func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.body = []byte(body)
	return b
}

// WithHeader sets a header.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers.Set(key, value)
	return b
}

// WithToken sets a bearer token.
func (b *RequestBuilder) WithToken(token string) *RequestBuilder {
	return b.WithHeader("Authorization", "Bearer "+token)
}

// WithQuery adds a query parameter.
func (b *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	b.query.Add(key, value)
	return b
}

// Build returns the request and a recorder for its response.
func (b *RequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	target := b.path
	if len(b.query) > 0 {
		target += "?" + b.query.Encode()
	}

	var req *http.Request
	if len(b.body) > 0 {
		req = httptest.NewRequest(b.method, target, bytes.NewReader(b.body))
	} else {
		req = httptest.NewRequest(b.method, target, nil)
	}
	for k, v := range b.headers {
		req.Header[k] = v
	}
	return req, httptest.NewRecorder()
}

// Serve builds the request and serves it with h.
func (b *RequestBuilder) Serve(h http.Handler) *httptest.ResponseRecorder {
	req, w := b.Build()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatus checks the response status code.
func AssertStatus(t testing.TB, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("expected status %d, got %d\nBody: %s", want, w.Code, w.Body.String())
	}
}

// AssertJSONResponse compares the decoded body with want, ignoring
// formatting.
func AssertJSONResponse(t testing.TB, w *httptest.ResponseRecorder, want any) {
	t.Helper()

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("encode expected value: %v", err)
	}
	var wantData, gotData any
	if err := json.Unmarshal(wantJSON, &wantData); err != nil {
		t.Fatalf("decode expected value: %v", err)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &gotData); err != nil {
		t.Fatalf("decode response body %q: %v", w.Body.String(), err)
	}
	if diff := cmp.Diff(wantData, gotData); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

// ErrorResponse is the error object of an error reply.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AssertJSONError checks that the response is an error reply with the given
// code and returns its error object.
func AssertJSONError(t testing.TB, w *httptest.ResponseRecorder, wantCode string) *ErrorResponse {
	t.Helper()

	var envelope struct {
		Error *ErrorResponse `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil || envelope.Error == nil {
		t.Fatalf("response is not an error reply: %v\nBody: %s", err, w.Body.String())
	}
	if envelope.Error.Code != wantCode {
		t.Errorf("expected error code %s, got %s (message: %s)", wantCode, envelope.Error.Code, envelope.Error.Message)
	}
	return envelope.Error
}

// AssertHeader checks a response header.
func AssertHeader(t testing.TB, w *httptest.ResponseRecorder, key, want string) {
	t.Helper()
	if got := w.Header().Get(key); got != want {
		t.Errorf("expected header %s=%q, got %q", key, want, got)
	}
}

// DecodeJSON decodes the response body into a value of type T.
func DecodeJSON[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response body %q: %v", w.Body.String(), err)
	}
	return v
}

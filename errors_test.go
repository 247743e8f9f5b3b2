package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		CodeInvalidArgument:  400,
		CodeUnauthenticated:  401,
		CodePermissionDenied: 403,
		CodeNotFound:         404,
		CodeMethodNotAllowed: 405,
		CodeConflict:         409,
		CodePayloadTooLarge:  413,
		CodeUnsupportedMedia: 415,
		CodeCanceled:         499,
		CodeInternal:         500,
		CodeUnavailable:      503,
		CodeDeadlineExceeded: 504,
		ErrorCode("bogus"):   500,
	}
	for code, want := range tests {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}

func TestErrorDetails(t *testing.T) {
	base := NewError(CodeInvalidArgument, "bad")
	withA := base.WithDetail("a", 1)
	withAB := withA.WithDetails(map[string]any{"b": 2})

	if base.Details != nil {
		t.Errorf("base mutated: %v", base.Details)
	}
	if diff := cmp.Diff(map[string]any{"a": 1}, withA.Details); diff != "" {
		t.Errorf("withA details (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"a": 1, "b": 2}, withAB.Details); diff != "" {
		t.Errorf("withAB details (-want +got):\n%s", diff)
	}
	if got := withAB.WithDetails(nil); got != withAB {
		t.Error("WithDetails(nil) allocated a new error")
	}
	if got, want := Errorf(CodeInternal, "x=%d", 1).Error(), "internal: x=1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestDefaultErrorTransformer(t *testing.T) {
	type payload struct {
		A int    `validate:"gte=0"`
		B string `validate:"required"`
	}
	valErr := validator.New().Struct(payload{A: -1})

	tests := []struct {
		name        string
		err         error
		wantCode    ErrorCode
		wantMsg     string
		wantDetails map[string]any
	}{
		{name: "nil", err: nil},
		{name: "surface error", err: NewError(CodeNotFound, "gone"), wantCode: CodeNotFound, wantMsg: "gone"},
		{name: "wrapped surface error", err: fmt.Errorf("lookup: %w", NewError(CodeConflict, "taken")), wantCode: CodeConflict, wantMsg: "taken"},
		{name: "deadline", err: fmt.Errorf("db: %w", context.DeadlineExceeded), wantCode: CodeDeadlineExceeded, wantMsg: "request timeout"},
		{name: "canceled", err: context.Canceled, wantCode: CodeCanceled, wantMsg: "request canceled"},
		{
			name:        "validation",
			err:         valErr,
			wantCode:    CodeInvalidArgument,
			wantMsg:     "A: must be at least 0; B: required",
			wantDetails: map[string]any{"A": "must be at least 0", "B": "required"},
		},
		{name: "plain", err: errors.New("disk on fire"), wantCode: CodeInternal, wantMsg: "disk on fire"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultErrorTransformer(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("got %v, want nil", got)
				}
				return
			}
			if got.Code != tt.wantCode || got.Message != tt.wantMsg {
				t.Errorf("got %s %q, want %s %q", got.Code, got.Message, tt.wantCode, tt.wantMsg)
			}
			if tt.wantDetails != nil {
				if diff := cmp.Diff(tt.wantDetails, got.Details); diff != "" {
					t.Errorf("details (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, NewError(CodeUnauthenticated, "unauthorized").WithDetail("hint", "log in"))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	want := map[string]map[string]any{"error": {
		"code":    "unauthenticated",
		"message": "unauthorized",
		"details": map[string]any{"hint": "log in"},
	}}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("body (-want +got):\n%s", diff)
	}
}

package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
)

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: prompt is required", broker.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: no credential", broker.ErrNotFound), http.StatusBadRequest},
		{broker.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: quota", broker.ErrRateLimited), http.StatusTooManyRequests},
		{broker.ErrUnknown, http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFromError(tc.err); got != tc.want {
			t.Fatalf("StatusFromError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRespondFailureWritesErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondFailure(rec, fmt.Errorf("%w: practice mode requires personal credential", broker.ErrUnauthorized))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(body["error"], "practice mode requires personal credential") {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))

	var dst struct{}
	if DecodeJSON(rec, req, &dst) {
		t.Fatal("expected decode failure")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

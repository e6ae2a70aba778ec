package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "server error", err: &HTTPStatusError{StatusCode: http.StatusBadGateway}, retryable: true, record: true},
		{name: "rate limited", err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, retryable: true, record: true},
		{name: "bad request", err: &HTTPStatusError{StatusCode: http.StatusBadRequest}},
		{name: "canceled", err: context.Canceled},
		{name: "deadline", err: context.DeadlineExceeded, retryable: true, record: true},
		{name: "plain", err: errors.New("decode"), record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyHTTPError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("ClassifyHTTPError(%v) = %+v", tc.err, got)
			}
		})
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := WrapTemporaryIfNeeded("ocr extract", &HTTPStatusError{Service: "ocr", StatusCode: 503, Status: "503 Service Unavailable"}, nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary wrap, got %v", err)
	}
	permanent := &HTTPStatusError{Service: "ocr", StatusCode: 400, Status: "400 Bad Request"}
	if err := WrapTemporaryIfNeeded("ocr extract", permanent, nil); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("4xx must stay permanent, got %v", err)
	}
}

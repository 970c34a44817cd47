package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"document not found", ErrDocumentNotFound, http.StatusNotFound},
		{"unknown route", ErrUnknownRoute, http.StatusNotFound},
		{"invalid query", ErrInvalidQuery, http.StatusBadRequest},
		{"invalid document id", ErrInvalidDocumentID, http.StatusBadRequest},
		{"malformed request", ErrMalformedRequest, http.StatusBadRequest},
		{"internal", ErrInternal, http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped sentinel", fmt.Errorf("handling request: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"app error carries its own code", New(ErrInternal, http.StatusBadRequest, "bad input"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusCode(tc.err); got != tc.want {
				t.Errorf("StatusCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidDocumentID, http.StatusBadRequest, "docID %q", "abc")
	if !errors.Is(err, ErrInvalidDocumentID) {
		t.Error("AppError does not unwrap to its sentinel")
	}
	if msg := err.Error(); msg != `invalid document id: docID "abc"` {
		t.Errorf("Error() = %q", msg)
	}
}

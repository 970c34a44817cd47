package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/corpussearch/searchd/pkg/errors"
)

// statusLine maps the handful of statuses the protocol emits. The framing
// mimics HTTP/1.1 but the server is not a full HTTP implementation: one
// request line in, one response out, connection closed.
func statusLine(code int) string {
	switch code {
	case http.StatusOK:
		return "HTTP/1.1 200 OK"
	case http.StatusBadRequest:
		return "HTTP/1.1 400 BAD REQUEST"
	case http.StatusNotFound:
		return "HTTP/1.1 404 NOT FOUND"
	default:
		return "HTTP/1.1 500 INTERNAL SERVER ERROR"
	}
}

// writeResponse frames one response: status line, Content-Type and
// Content-Length headers, blank line, JSON body. The whole response is
// written in a single call.
func writeResponse(w io.Writer, code int, body []byte) error {
	var buf bytes.Buffer
	buf.WriteString(statusLine(code))
	buf.WriteString("\r\nContent-Type: application/json\r\n")
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}

// errBody renders a client-facing error payload.
func errBody(msg string) []byte {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return body
}

// clientMessage extracts the human-readable part of a handler error for the
// response body.
func clientMessage(err error) string {
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// jsonBody marshals a successful response payload.
func jsonBody(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.ErrInternal, http.StatusInternalServerError, "failed to encode response")
	}
	return body, nil
}

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/corpussearch/searchd/internal/index"
	"github.com/corpussearch/searchd/internal/search"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *index.Index) {
	t.Helper()
	ix := index.New()
	return NewDispatcher(ix, search.New(ix, nil), nil, nil, nil), ix
}

func TestRouteStatusCodes(t *testing.T) {
	d, ix := newTestDispatcher(t)
	ix.AddDocument("Rust is fast", "a.txt")

	cases := []struct {
		name string
		line string
		want int
	}{
		{"welcome", "GET / HTTP/1.1", http.StatusOK},
		{"search hit", "GET /search?q=fast HTTP/1.1", http.StatusOK},
		{"search no results", "GET /search?q=slow HTTP/1.1", http.StatusOK},
		{"search bad encoding", "GET /search?q=%zz HTTP/1.1", http.StatusBadRequest},
		{"document found", "GET /document?docID=0 HTTP/1.1", http.StatusOK},
		{"document missing", "GET /document?docID=42 HTTP/1.1", http.StatusNotFound},
		{"document bad id", "GET /document?docID=abc HTTP/1.1", http.StatusBadRequest},
		{"stats", "GET /stats HTTP/1.1", http.StatusOK},
		{"unknown route", "GET /nope HTTP/1.1", http.StatusNotFound},
		{"non-GET", "POST /search?q=x HTTP/1.1", http.StatusBadRequest},
		{"short request line", "GET /", http.StatusBadRequest},
		{"empty request line", "", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := d.route(context.Background(), tc.line)
			if code != tc.want {
				t.Errorf("route(%q) status = %d, want %d (body %s)", tc.line, code, tc.want, body)
			}
			if !json.Valid(body) {
				t.Errorf("route(%q) body is not valid JSON: %s", tc.line, body)
			}
		})
	}
}

func TestRouteSearchPayload(t *testing.T) {
	d, ix := newTestDispatcher(t)
	aID := ix.AddDocument("Rust is fast", "a.txt")
	ix.AddDocument("Go is simple", "b.txt")

	code, body := d.route(context.Background(), "GET /search?q=rust+is HTTP/1.1")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var resp search.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if resp.TotalHits != 1 {
		t.Fatalf("TotalHits = %d, want 1", resp.TotalHits)
	}
	if resp.Hits[0].DocID != aID || resp.Hits[0].Name != "a.txt" {
		t.Errorf("hit = %+v, want doc %d (a.txt)", resp.Hits[0], aID)
	}
}

func TestRouteSearchDecodesQuery(t *testing.T) {
	d, ix := newTestDispatcher(t)
	ix.AddDocument("Rust is fast", "a.txt")

	// %20 decodes to a space, producing a two-term query.
	code, body := d.route(context.Background(), "GET /search?q=rust%20fast HTTP/1.1")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var resp search.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalHits != 1 {
		t.Errorf("TotalHits = %d, want 1", resp.TotalHits)
	}
}

func TestRouteDocumentPayload(t *testing.T) {
	d, ix := newTestDispatcher(t)
	id := ix.AddDocument("full document body", "doc.txt")

	code, body := d.route(context.Background(), fmt.Sprintf("GET /document?docID=%d HTTP/1.1", id))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var doc index.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID != id || doc.Name != "doc.txt" || doc.Content != "full document body" {
		t.Errorf("document = %+v", doc)
	}
}

func TestRouteStatsPayload(t *testing.T) {
	d, ix := newTestDispatcher(t)
	ix.AddDocument("alpha beta", "a.txt")
	ix.AddDocument("beta gamma", "b.txt")

	code, body := d.route(context.Background(), "GET /stats HTTP/1.1")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var stats map[string]any
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatal(err)
	}
	if stats["documents"].(float64) != 2 {
		t.Errorf("documents = %v, want 2", stats["documents"])
	}
	if stats["terms"].(float64) != 3 {
		t.Errorf("terms = %v, want 3", stats["terms"])
	}
}

// TestHandleFraming drives a full connection through net.Pipe and checks
// the response framing: status line, Content-Length matching the body,
// blank line, body, then EOF (connection closed, no keep-alive).
func TestHandleFraming(t *testing.T) {
	d, ix := newTestDispatcher(t)
	ix.AddDocument("Rust is fast", "a.txt")

	client, srv := net.Pipe()
	go d.Handle(context.Background(), srv)

	if _, err := client.Write([]byte("GET /search?q=fast HTTP/1.1\r\n")); err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(client)

	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimRight(status, "\r\n") != "HTTP/1.1 200 OK" {
		t.Errorf("status line = %q", status)
	}

	var contentLength int
	for {
		header, err := reader.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		header = strings.TrimRight(header, "\r\n")
		if header == "" {
			break
		}
		if v, ok := strings.CutPrefix(header, "Content-Length: "); ok {
			contentLength, err = strconv.Atoi(v)
			if err != nil {
				t.Fatalf("bad Content-Length %q: %v", v, err)
			}
		}
	}
	if contentLength == 0 {
		t.Fatal("missing Content-Length header")
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != contentLength {
		t.Errorf("body is %d bytes, Content-Length says %d", len(body), contentLength)
	}
	if !json.Valid(body) {
		t.Errorf("body is not valid JSON: %s", body)
	}
}

package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/corpussearch/searchd/internal/analytics"
	"github.com/corpussearch/searchd/internal/index"
	"github.com/corpussearch/searchd/internal/pool"
	"github.com/corpussearch/searchd/internal/search"
	pkgerrors "github.com/corpussearch/searchd/pkg/errors"
	"github.com/corpussearch/searchd/pkg/logger"
	"github.com/corpussearch/searchd/pkg/metrics"
)

// maxRequestLine bounds how much of a connection is read before giving up
// on finding the end of the request line.
const maxRequestLine = 8 << 10

// Dispatcher parses one request line per connection, routes it to index
// operations, and writes one framed response.
type Dispatcher struct {
	ix        *index.Index
	searcher  *search.Searcher
	pool      *pool.Pool
	collector *analytics.Collector // may be nil
	metrics   *metrics.Metrics     // may be nil
}

func NewDispatcher(ix *index.Index, searcher *search.Searcher, p *pool.Pool, collector *analytics.Collector, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		ix:        ix,
		searcher:  searcher,
		pool:      p,
		collector: collector,
		metrics:   m,
	}
}

// Handle serves one connection: read one request line, write one response,
// close. Read and write failures are logged and the connection abandoned.
func (d *Dispatcher) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := logger.FromContext(ctx)

	reader := bufio.NewReader(io.LimitReader(conn, maxRequestLine))
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		log.Error("reading request line", "error", err, "remote", conn.RemoteAddr())
		return
	}

	code, body := d.route(ctx, strings.TrimRight(line, "\r\n"))
	if err := writeResponse(conn, code, body); err != nil {
		log.Error("writing response", "error", err, "remote", conn.RemoteAddr())
		return
	}
	if d.metrics != nil {
		d.metrics.ConnectionsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

// route interprets the request line as `<METHOD> <PATH> <VERSION>` and
// dispatches on the path. Only GET is accepted. Handler errors are mapped
// to wire statuses through the shared error taxonomy.
func (d *Dispatcher) route(ctx context.Context, line string) (int, []byte) {
	body, err := d.dispatch(ctx, line)
	if err != nil {
		return pkgerrors.StatusCode(err), errBody(clientMessage(err))
	}
	return http.StatusOK, body
}

func (d *Dispatcher) dispatch(ctx context.Context, line string) ([]byte, error) {
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return nil, pkgerrors.New(pkgerrors.ErrMalformedRequest, http.StatusBadRequest, "invalid request line")
	}
	method, target := parts[0], parts[1]
	if method != "GET" {
		return nil, pkgerrors.Newf(pkgerrors.ErrMalformedRequest, http.StatusBadRequest, "method %s not supported", method)
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.ErrMalformedRequest, http.StatusBadRequest, "invalid request target")
	}

	switch u.Path {
	case "/":
		return d.handleWelcome()
	case "/search":
		return d.handleSearch(ctx, u.RawQuery)
	case "/document":
		return d.handleDocument(u.RawQuery)
	case "/stats":
		return d.handleStats()
	default:
		return nil, pkgerrors.Newf(pkgerrors.ErrUnknownRoute, http.StatusNotFound, "no route for %s", u.Path)
	}
}

func (d *Dispatcher) handleWelcome() ([]byte, error) {
	return jsonBody(map[string]any{
		"service": "searchd",
		"routes": []string{
			"GET /search?q=<url-encoded query>",
			"GET /document?docID=<integer>",
			"GET /stats",
		},
	})
}

func (d *Dispatcher) handleSearch(ctx context.Context, rawQuery string) ([]byte, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, http.StatusBadRequest, "invalid query encoding")
	}
	query := values.Get("q")

	start := time.Now()
	resp, cached, err := d.searcher.Search(ctx, query)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.ErrInternal, http.StatusInternalServerError, "search failed")
	}
	elapsed := time.Since(start)

	if d.collector != nil {
		d.collector.Track(analytics.NewSearchEvent(query, resp.TotalHits, elapsed))
	}
	if d.metrics != nil {
		resultType := "hit"
		if resp.TotalHits == 0 {
			resultType = "zero_result"
		}
		cacheStatus := "miss"
		if cached {
			cacheStatus = "hit"
		}
		d.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		d.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}

	// An empty result set is still a 200 with total_hits: 0.
	return jsonBody(resp)
}

// handleDocument looks a document up by id. A non-integer id is a 400; a
// well-formed id that was never assigned is a 404.
func (d *Dispatcher) handleDocument(rawQuery string) ([]byte, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, http.StatusBadRequest, "invalid query encoding")
	}
	docID, err := strconv.ParseUint(values.Get("docID"), 10, 64)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidDocumentID, http.StatusBadRequest, "docID %q is not an unsigned integer", values.Get("docID"))
	}

	doc, ok := d.ix.GetDocument(docID)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.ErrDocumentNotFound, http.StatusNotFound, "no document with id %d", docID)
	}
	if d.collector != nil {
		d.collector.Track(analytics.NewFetchEvent(docID))
	}
	return jsonBody(doc)
}

func (d *Dispatcher) handleStats() ([]byte, error) {
	stats := map[string]any{
		"documents": d.ix.DocumentCount(),
		"terms":     d.ix.TermCount(),
	}
	if d.pool != nil {
		stats["queue_depth"] = d.pool.QueueDepth()
	}
	if d.searcher != nil {
		hits, misses := d.searcher.CacheStats()
		stats["cache_hits"] = hits
		stats["cache_misses"] = misses
	}
	return jsonBody(stats)
}

// Package testutil provides testing utilities for the archive client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dariaag/dive-go/pkg/archive"
)

// BlockFn generates the block payload the mock worker returns for a height.
type BlockFn func(n uint64) archive.Block

// MockArchive is a configurable in-process archive gateway for testing.
//
// It answers the router surface (GET /height, GET /{block}/worker) and a
// worker endpoint (POST /query) that serves generated pages honoring the
// inclusive fromBlock/toBlock bounds of the request body.
type MockArchive struct {
	server *httptest.Server

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	height   uint64
	pageSize uint64 // Max blocks per page (0 = whole requested range)
	blockFn  BlockFn

	queryDelay time.Duration

	// Failure scripting for the query endpoint
	failRemaining int
	failStatus    int
	retryAfter    string

	// Tracking
	requestCount     int
	heightRequests   int
	routeResolutions int
	queryRequests    int
	requestedFroms   []uint64
	lastQueryBody    []byte
	inflight         int
	peakInflight     int
}

// NewMockArchive creates a mock archive gateway serving generated blocks.
func NewMockArchive() *MockArchive {
	mock := &MockArchive{
		handlers: make(map[string]http.HandlerFunc),
		blockFn:  DefaultBlockFn,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.mu.Unlock()

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/height":
			mock.handleHeight(w, r)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/worker"):
			mock.handleRoute(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/query":
			mock.handleQuery(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return mock
}

// DefaultBlockFn returns a block carrying a single log record.
func DefaultBlockFn(n uint64) archive.Block {
	return archive.Block{
		Header: archive.BlockHeader{Number: n},
		Logs: []archive.Record{{
			"logIndex": float64(0),
			"address":  "0x0000000000000000000000000000000000000000",
		}},
	}
}

// URL returns the mock gateway URL.
func (m *MockArchive) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockArchive) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and failure scripts.
func (m *MockArchive) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.heightRequests = 0
	m.routeResolutions = 0
	m.queryRequests = 0
	m.requestedFroms = nil
	m.lastQueryBody = nil
	m.peakInflight = 0
	m.failRemaining = 0
	m.failStatus = 0
	m.retryAfter = ""
}

// SetHandler installs a custom handler for a specific path.
func (m *MockArchive) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetHeight sets the head block number reported by GET /height.
func (m *MockArchive) SetHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
}

// SetPageSize caps the number of blocks served per page, forcing the client
// to paginate. Zero serves every requested range in one page.
func (m *MockArchive) SetPageSize(size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = size
}

// SetBlockFn replaces the per-block payload generator.
func (m *MockArchive) SetBlockFn(fn BlockFn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockFn = fn
}

// SetQueryDelay makes every query response take at least d.
func (m *MockArchive) SetQueryDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryDelay = d
}

// FailNextQueries scripts the next n query requests to answer with status.
// retryAfter, when non-empty, is sent as a Retry-After header.
func (m *MockArchive) FailNextQueries(n int, status int, retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRemaining = n
	m.failStatus = status
	m.retryAfter = retryAfter
}

// RequestCount returns the total number of requests on any endpoint.
func (m *MockArchive) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RouteResolutions returns how many times a worker route was resolved.
func (m *MockArchive) RouteResolutions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routeResolutions
}

// QueryRequests returns the number of page queries received.
func (m *MockArchive) QueryRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryRequests
}

// RequestedFroms returns the fromBlock of every page query, in arrival order.
func (m *MockArchive) RequestedFroms() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	froms := make([]uint64, len(m.requestedFroms))
	copy(froms, m.requestedFroms)
	return froms
}

// LastQueryBody returns the raw body of the most recent page query.
func (m *MockArchive) LastQueryBody() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQueryBody
}

// PeakInflight returns the highest number of concurrent query requests seen.
func (m *MockArchive) PeakInflight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peakInflight
}

func (m *MockArchive) handleHeight(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	m.heightRequests++
	height := m.height
	m.mu.Unlock()

	fmt.Fprintf(w, "%d", height)
}

func (m *MockArchive) handleRoute(w http.ResponseWriter, r *http.Request) {
	blockStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/worker")
	if _, err := strconv.ParseUint(blockStr, 10, 64); err != nil {
		http.Error(w, "bad block number", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.routeResolutions++
	m.mu.Unlock()

	fmt.Fprint(w, m.server.URL+"/query")
}

func (m *MockArchive) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var pageReq struct {
		FromBlock uint64 `json:"fromBlock"`
		ToBlock   uint64 `json:"toBlock"`
	}
	if err := json.Unmarshal(body, &pageReq); err != nil {
		http.Error(w, "bad query body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.queryRequests++
	m.requestedFroms = append(m.requestedFroms, pageReq.FromBlock)
	m.lastQueryBody = body
	m.inflight++
	if m.inflight > m.peakInflight {
		m.peakInflight = m.inflight
	}
	delay := m.queryDelay
	failing := m.failRemaining > 0
	var failStatus int
	var retryAfter string
	if failing {
		m.failRemaining--
		failStatus = m.failStatus
		retryAfter = m.retryAfter
	}
	pageSize := m.pageSize
	blockFn := m.blockFn
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	if failing {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failStatus)
		w.Write([]byte(`{"error": "scripted failure"}`))
		return
	}

	// Bounds are inclusive on the wire.
	last := pageReq.ToBlock
	if pageSize > 0 && pageReq.FromBlock+pageSize-1 < last {
		last = pageReq.FromBlock + pageSize - 1
	}

	blocks := make([]archive.Block, 0, last-pageReq.FromBlock+1)
	for n := pageReq.FromBlock; n <= last; n++ {
		blocks = append(blocks, blockFn(n))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(blocks)
}

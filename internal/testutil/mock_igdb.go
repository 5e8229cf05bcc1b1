// Package testutil provides testing utilities for the IGDB client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Credentials accepted by the mock identity endpoint.
const (
	MockClientID     = "test-client-id"
	MockClientSecret = "test-client-secret"
	MockAccessToken  = "test-access-token"
)

var (
	offsetClause = regexp.MustCompile(`offset (\d+);`)
	limitClause  = regexp.MustCompile(`limit (\d+);`)
)

// MockIGDB is a configurable mock of the Twitch identity endpoint and the
// IGDB v4 API.
type MockIGDB struct {
	server *httptest.Server

	mu        sync.Mutex
	resources map[string][]json.RawMessage
	failures  map[string]int // "<resource>:<offset>" -> status
	tokenFail int
	delay     time.Duration

	// Tracking
	TokenCount        int
	RequestCount      int
	Bodies            []string
	LastRequestHeader http.Header
	inFlight          int
	MaxInFlight       int
}

// NewMockIGDB starts a mock server.
func NewMockIGDB() *MockIGDB {
	mock := &MockIGDB{
		resources: make(map[string][]json.RawMessage),
		failures:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", mock.tokenHandler)
	mux.HandleFunc("/v4/", mock.catalogHandler)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockIGDB) URL() string {
	return m.server.URL
}

// TokenURL returns the mock identity endpoint.
func (m *MockIGDB) TokenURL() string {
	return m.server.URL + "/oauth2/token"
}

// BaseURL returns the mock catalog API root.
func (m *MockIGDB) BaseURL() string {
	return m.server.URL + "/v4/"
}

// Close shuts down the mock server.
func (m *MockIGDB) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockIGDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenCount = 0
	m.RequestCount = 0
	m.Bodies = nil
	m.LastRequestHeader = nil
	m.MaxInFlight = 0
}

// SetResource configures the full, id-ordered item set served for a resource.
func (m *MockIGDB) SetResource(resource string, items []json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resource] = items
}

// FailAt makes requests for resource at offset answer with status.
func (m *MockIGDB) FailAt(resource string, offset, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[fmt.Sprintf("%s:%d", resource, offset)] = status
}

// FailToken makes the identity endpoint answer with status.
func (m *MockIGDB) FailToken(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenFail = status
}

// SetDelay delays every catalog response.
func (m *MockIGDB) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// GetRequestCount returns the number of catalog requests received.
func (m *MockIGDB) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetTokenCount returns the number of token requests received.
func (m *MockIGDB) GetTokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TokenCount
}

// GetBodies returns a copy of the catalog request bodies received.
func (m *MockIGDB) GetBodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Bodies...)
}

// GetMaxInFlight returns the highest number of concurrent catalog requests seen.
func (m *MockIGDB) GetMaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MaxInFlight
}

// GetLastRequestHeader returns the headers of the latest catalog request.
func (m *MockIGDB) GetLastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequestHeader
}

func (m *MockIGDB) tokenHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.TokenCount++
	fail := m.tokenFail
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if fail != 0 {
		w.WriteHeader(fail)
		fmt.Fprintf(w, `{"status":%d,"message":"mock failure"}`, fail)
		return
	}

	q := r.URL.Query()
	if q.Get("grant_type") != "client_credentials" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":400,"message":"invalid grant type"}`))
		return
	}
	if q.Get("client_id") != MockClientID || q.Get("client_secret") != MockClientSecret {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":403,"message":"invalid client secret"}`))
		return
	}

	fmt.Fprintf(w, `{"access_token":%q,"expires_in":5184000,"token_type":"bearer"}`, MockAccessToken)
}

func (m *MockIGDB) catalogHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	resource := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v4/"), "/")
	offset := lastInt(offsetClause, string(body), 0)
	limit := lastInt(limitClause, string(body), 10)

	m.mu.Lock()
	m.RequestCount++
	m.Bodies = append(m.Bodies, string(body))
	m.LastRequestHeader = r.Header.Clone()
	m.inFlight++
	if m.inFlight > m.MaxInFlight {
		m.MaxInFlight = m.inFlight
	}
	delay := m.delay
	status, failing := m.failures[fmt.Sprintf("%s:%d", resource, offset)]
	items, known := m.resources[resource]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Client-ID") != MockClientID || r.Header.Get("Authorization") != "Bearer "+MockAccessToken {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Authorization Failure. Have you tried:https://api-docs.igdb.com/#authentication"}`))
		return
	}
	if failing {
		w.WriteHeader(status)
		w.Write([]byte(`[{"title":"mock failure","status":` + strconv.Itoa(status) + `}]`))
		return
	}
	if !known {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	page := []json.RawMessage{}
	if offset < len(items) {
		end := offset + limit
		if end > len(items) {
			end = len(items)
		}
		page = items[offset:end]
	}

	out, _ := json.Marshal(page)
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func lastInt(re *regexp.Regexp, s string, def int) int {
	matches := re.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return def
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return def
	}
	return n
}

// GenerateGenres returns n genre items with ids 1..n.
func GenerateGenres(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		items[i] = json.RawMessage(fmt.Sprintf(`{"id":%d,"name":"Genre %d"}`, i+1, i+1))
	}
	return items
}

// GeneratePlatforms returns n platform items with ids 1..n.
func GeneratePlatforms(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		items[i] = json.RawMessage(fmt.Sprintf(`{"id":%d,"name":"Platform %d","abbreviation":"P%d"}`, i+1, i+1, i+1))
	}
	return items
}

// GenerateCompanies returns n company items with ids 1..n, every other one
// carrying an expanded logo.
func GenerateCompanies(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		id := i + 1
		if id%2 == 0 {
			items[i] = json.RawMessage(fmt.Sprintf(`{"id":%d,"name":"Company %d","logo":{"id":%d,"image_id":"logo%d"}}`, id, id, id, id))
		} else {
			items[i] = json.RawMessage(fmt.Sprintf(`{"id":%d,"name":"Company %d"}`, id, id))
		}
	}
	return items
}

// GenerateGames returns n game items with ids 1..n referencing genre 1,
// platform 1 and company 1.
func GenerateGames(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		id := i + 1
		items[i] = json.RawMessage(fmt.Sprintf(`{"id":%d,"name":"Game %d","cover":{"id":%d,"image_id":"co%d"},`+
			`"first_release_date":%d,"genres":[1],"platforms":[1],`+
			`"involved_companies":[{"id":%d,"company":1,"developer":true,"publisher":false}],"summary":"Summary %d"}`,
			id, id, id, id, 946684800+id*86400, id, id))
	}
	return items
}

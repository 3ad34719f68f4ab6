package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Whisper is one POST /helix/whispers call seen by MockHelixServer.
type Whisper struct {
	FromID, ToID, Message string
	Authorization         string
	ClientID              string
}

// MockHelixServer mocks the Helix user lookup and whisper endpoints.
// Base URLs for clients are Server.URL + "/helix".
type MockHelixServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	whispers []Whisper
}

// NewMockHelixServer creates a mock server closed on test cleanup.
func NewMockHelixServer(t *testing.T) *MockHelixServer {
	t.Helper()
	m := &MockHelixServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// BaseURL is the Helix root for this server.
func (m *MockHelixServer) BaseURL() string { return m.URL + "/helix" }

// MockUsers answers /helix/users lookups from logins (login -> id). Unknown
// logins get an empty data array.
func (m *MockHelixServer) MockUsers(logins map[string]string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		login := r.URL.Query().Get("login")
		data := []map[string]string{}
		if id, ok := logins[login]; ok {
			data = append(data, map[string]string{"id": id, "login": login})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data}) //nolint:errcheck // test mock response
	}
}

// MockWhispers records whispers and answers with status.
func (m *MockHelixServer) MockWhispers(status int) {
	m.Handlers["/helix/whispers"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // test mock request
		m.mu.Lock()
		m.whispers = append(m.whispers, Whisper{
			FromID:        r.URL.Query().Get("from_user_id"),
			ToID:          r.URL.Query().Get("to_user_id"),
			Message:       body.Message,
			Authorization: r.Header.Get("Authorization"),
			ClientID:      r.Header.Get("Client-Id"),
		})
		m.mu.Unlock()
		w.WriteHeader(status)
	}
}

// Whispers returns the whispers received so far.
func (m *MockHelixServer) Whispers() []Whisper {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Whisper(nil), m.whispers...)
}

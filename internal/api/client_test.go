package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corvandale/leadctl/internal/model"
)

// fakeStore is an in-memory SessionStore for client tests.
type fakeStore struct {
	mu   sync.Mutex
	sess *model.Session
}

func newFakeStore(access, refresh string) *fakeStore {
	return &fakeStore{sess: &model.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         model.User{ID: 1, Username: "alice"},
	}}
}

func (f *fakeStore) Load(ctx context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return nil, nil
	}
	copied := *f.sess
	return &copied, nil
}

func (f *fakeStore) SetAccessToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return errors.New("no stored session")
	}
	f.sess.AccessToken = token
	return nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = nil
	return nil
}

func (f *fakeStore) current() *model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestBearerAndRequestIDAttached(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []model.Lead{}})
	}))
	defer server.Close()

	c := New(server.URL, newFakeStore("tok-1", "ref-1"))
	if _, err := c.Leads(context.Background()); err != nil {
		t.Fatalf("leads: %v", err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected an X-Request-ID header")
	}
}

func TestNoBearerWhenAnonymous(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": model.LeadStatistics{}})
	}))
	defer server.Close()

	store := &fakeStore{}
	c := New(server.URL, store)
	if _, err := c.LeadStatistics(context.Background()); err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty for anonymous client", gotAuth)
	}
}

// One 401 must trigger exactly one refresh call and exactly one retry of
// the original request, which then succeeds with the new token.
func TestRefreshAndRetryOnce(t *testing.T) {
	var refreshCalls, dataCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		var body struct {
			Refresh string `json:"refresh"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Refresh != "ref-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "bad refresh"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]string{"access_token": "tok-2"},
		})
	})
	mux.HandleFunc("/leads/statistics/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    model.LeadStatistics{TotalLeads: 4},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := newFakeStore("tok-1", "ref-1")
	c := New(server.URL, store)

	stats, err := c.LeadStatistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalLeads != 4 {
		t.Errorf("total_leads = %d, want 4", stats.TotalLeads)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
	if n := atomic.LoadInt32(&dataCalls); n != 2 {
		t.Errorf("data calls = %d, want 2 (original + one retry)", n)
	}
	if sess := store.current(); sess == nil || sess.AccessToken != "tok-2" {
		t.Errorf("stored access token not rotated: %+v", sess)
	}
}

// A request that still gets 401 after its single retry surfaces the error
// instead of retrying again.
func TestRetryAtMostOnce(t *testing.T) {
	var dataCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]string{"access_token": "tok-2"},
		})
	})
	mux.HandleFunc("/leads/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "still unauthorized"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, newFakeStore("tok-1", "ref-1"))
	_, err := c.Leads(context.Background())
	if err == nil {
		t.Fatal("expected error after retry also failed")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
	if n := atomic.LoadInt32(&dataCalls); n != 2 {
		t.Errorf("data calls = %d, want exactly 2", n)
	}
}

// Concurrent 401s must share a single refresh call.
func TestConcurrentRefreshSingleFlight(t *testing.T) {
	const workers = 3
	var refreshCalls int32

	// Barrier: the data endpoint holds its first-round 401 responses
	// until every worker's request has arrived, so all workers enter
	// the refresh path together.
	arrived := make(chan struct{}, workers)
	release := make(chan struct{})
	var barrierOnce sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		time.Sleep(50 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]string{"access_token": "tok-2"},
		})
	})
	mux.HandleFunc("/leads/statistics/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-2" {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": model.LeadStatistics{}})
			return
		}
		arrived <- struct{}{}
		barrierOnce.Do(func() {
			go func() {
				for i := 0; i < workers; i++ {
					<-arrived
				}
				close(release)
			}()
		})
		<-release
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "token expired"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, newFakeStore("tok-1", "ref-1"))

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.LeadStatistics(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
}

// Refresh failure clears the session and surfaces ErrSessionExpired;
// later requests go out without a stale bearer token.
func TestRefreshFailureClearsSession(t *testing.T) {
	var lastAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "refresh token expired"})
	})
	mux.HandleFunc("/leads/", func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		if lastAuth != "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, []model.Lead{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := newFakeStore("tok-1", "ref-1")
	c := New(server.URL, store)

	_, err := c.Leads(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error = %v, want ErrSessionExpired", err)
	}
	if store.current() != nil {
		t.Error("session not cleared after refresh failure")
	}

	// Subsequent request must carry no stale token.
	if _, err := c.Leads(context.Background()); err != nil {
		t.Fatalf("anonymous retry: %v", err)
	}
	if lastAuth != "" {
		t.Errorf("Authorization after clear = %q, want empty", lastAuth)
	}
}

func TestLoginSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login/" {
			t.Errorf("path = %s, want /auth/login/", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Login successful",
			"data": map[string]any{
				"user":          model.User{ID: 3, Email: "alice@example.com"},
				"access_token":  "tok-a",
				"refresh_token": "tok-r",
			},
		})
	}))
	defer server.Close()

	c := New(server.URL, &fakeStore{})
	sess, err := c.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.AccessToken != "tok-a" || sess.RefreshToken != "tok-r" {
		t.Errorf("tokens = %q/%q, want tok-a/tok-r", sess.AccessToken, sess.RefreshToken)
	}
	if sess.User.ID != 3 {
		t.Errorf("user id = %d, want 3", sess.User.ID)
	}
}

func TestLoginMissingTokensRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"user":         model.User{ID: 3},
				"access_token": "tok-a",
			},
		})
	}))
	defer server.Close()

	c := New(server.URL, &fakeStore{})
	if _, err := c.Login(context.Background(), LoginInput{}); err == nil {
		t.Error("expected error for response missing refresh token")
	}
}

func TestLoginFailureMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid credentials",
			"errors":  map[string][]string{"email": {"No account with this email"}},
		})
	}))
	defer server.Close()

	c := New(server.URL, &fakeStore{})
	_, err := c.Login(context.Background(), LoginInput{Email: "x", Password: "y"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("message = %q, want Invalid credentials", apiErr.Message)
	}
	if len(apiErr.Errors["email"]) != 1 {
		t.Errorf("field errors = %v, want one email error", apiErr.Errors)
	}
}

func TestTimeoutNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := New(server.URL, &fakeStore{}, WithTimeout(20*time.Millisecond))
	err := c.ChangePassword(context.Background(), "old", "new")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if !apiErr.Transport() {
		t.Error("timeout should be a transport-level APIError")
	}
	if apiErr.Message != "Request timeout. Please try again." {
		t.Errorf("message = %q, want timeout message", apiErr.Message)
	}
}

func TestConnectionFailureNormalized(t *testing.T) {
	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := New(server.URL, &fakeStore{})
	err := c.DeleteLead(context.Background(), 1)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if !apiErr.Transport() {
		t.Error("connection failure should be a transport-level APIError")
	}
}

func TestDecodeWrappedAndBarePayloads(t *testing.T) {
	lead := model.Lead{ID: 9, Name: "John Doe", Status: model.StatusNewLead}

	tests := []struct {
		name string
		body any
	}{
		{"wrapped", map[string]any{"success": true, "message": "ok", "data": lead}},
		{"bare", lead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			}))
			defer server.Close()

			c := New(server.URL, newFakeStore("t", "r"))
			got, err := c.CreateLead(context.Background(), model.CreateLead{Name: "John Doe"})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if got.ID != 9 || got.Name != "John Doe" {
				t.Errorf("lead = %+v, want id 9 name John Doe", got)
			}
		})
	}
}

func TestGetRetriesTransportErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Drop the first connection mid-response.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("server does not support hijacking")
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": model.LeadsByStatus{}})
	}))
	defer server.Close()

	c := New(server.URL, newFakeStore("t", "r"))
	if _, err := c.LeadsByStatus(context.Background()); err != nil {
		t.Fatalf("leads by status: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2 (one failure, one retry)", n)
	}
}

func TestMutationsDoNotRetryTransportErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("server does not support hijacking")
			return
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer server.Close()

	c := New(server.URL, newFakeStore("t", "r"))
	if _, err := c.CreateLead(context.Background(), model.CreateLead{Name: "x"}); err == nil {
		t.Fatal("expected transport error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1 (no transport retry for POST)", n)
	}
}

func TestLogoutSendsRefreshToken(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	c := New(server.URL, newFakeStore("t", "ref-9"))
	if err := c.Logout(context.Background(), "ref-9"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got["refresh_token"] != "ref-9" {
		t.Errorf("refresh_token = %q, want ref-9", got["refresh_token"])
	}
}

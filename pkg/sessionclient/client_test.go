package sessionclient_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/pkg/sessionclient"
	"github.com/stretchr/testify/require"
)

// testBackend serves a protected endpoint that accepts only the current
// token, and a refresh endpoint that rotates it. refreshCalls counts how many
// refresh requests actually hit the wire.
type testBackend struct {
	mu           sync.Mutex
	currentToken string
	refreshOK    bool
	refreshCalls int64
	server       *httptest.Server
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{currentToken: "token-0", refreshOK: true}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/resource", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+b.currentToken
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&b.refreshCalls, 1)
		// Renewal is deliberately slow so concurrent 401s pile up behind it.
		time.Sleep(50 * time.Millisecond)

		b.mu.Lock()
		allowed := b.refreshOK
		if allowed {
			b.currentToken = fmt.Sprintf("token-%d", n)
		}
		token := b.currentToken
		b.mu.Unlock()

		if !allowed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":%q}`, token)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *testBackend) setRefreshOK(ok bool) {
	b.mu.Lock()
	b.refreshOK = ok
	b.mu.Unlock()
}

func (b *testBackend) calls() int64 {
	return atomic.LoadInt64(&b.refreshCalls)
}

func TestDoAttachesToken(t *testing.T) {
	backend := newTestBackend(t)
	mgr := sessionclient.New(backend.server.URL + "/api/auth/refresh")
	mgr.SetSession("token-0")

	req, err := http.NewRequest(http.MethodGet, backend.server.URL+"/api/resource", nil)
	require.NoError(t, err)

	resp, err := mgr.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, backend.calls())
}

func TestDoRenewsOnUnauthorizedAndRetriesOnce(t *testing.T) {
	backend := newTestBackend(t)
	mgr := sessionclient.New(backend.server.URL + "/api/auth/refresh")
	mgr.SetSession("stale-token")

	req, err := http.NewRequest(http.MethodGet, backend.server.URL+"/api/resource", nil)
	require.NoError(t, err)

	resp, err := mgr.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, backend.calls())
	require.Equal(t, "token-1", mgr.Token())
}

// N requests failing authorization at the same time must produce exactly one
// refresh call; every request retries with the same renewed token.
func TestConcurrentUnauthorizedSingleFlight(t *testing.T) {
	backend := newTestBackend(t)
	mgr := sessionclient.New(backend.server.URL + "/api/auth/refresh")
	mgr.SetSession("stale-token")

	const n = 20
	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, backend.server.URL+"/api/resource", nil)
			if err != nil {
				errs[i] = err
				return
			}
			resp, err := mgr.Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "request %d", i)
		require.Equal(t, http.StatusOK, statuses[i], "request %d", i)
	}
	require.EqualValues(t, 1, backend.calls())
	require.Equal(t, "token-1", mgr.Token())
}

// When renewal fails, every waiting request is rejected uniformly, the
// destroyed hook fires exactly once, and nobody triggers a second attempt.
func TestRenewalFailureRejectsAllWaitersUniformly(t *testing.T) {
	backend := newTestBackend(t)
	backend.setRefreshOK(false)

	var destroyed int64
	mgr := sessionclient.New(
		backend.server.URL+"/api/auth/refresh",
		sessionclient.WithSessionDestroyedHook(func() { atomic.AddInt64(&destroyed, 1) }),
	)
	mgr.SetSession("stale-token")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, backend.server.URL+"/api/resource", nil)
			if err != nil {
				errs[i] = err
				return
			}
			resp, err := mgr.Do(req)
			if err == nil {
				resp.Body.Close()
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.ErrorIs(t, errs[i], sessionclient.ErrSessionExpired, "request %d", i)
	}
	require.EqualValues(t, 1, backend.calls())
	require.EqualValues(t, 1, atomic.LoadInt64(&destroyed))
	require.False(t, mgr.Authenticated())
	require.Empty(t, mgr.Token())
}

// A retry that still comes back 401 is terminal: the response is returned
// as-is, with no second renewal for the same originating request.
func TestRetryFailureIsTerminal(t *testing.T) {
	backend := newTestBackend(t)
	mgr := sessionclient.New(backend.server.URL + "/api/auth/refresh")
	mgr.SetSession("stale-token")

	// Protected endpoint that never accepts anything.
	deny := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer deny.Close()

	req, err := http.NewRequest(http.MethodGet, deny.URL+"/api/resource", nil)
	require.NoError(t, err)

	resp, err := mgr.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 1, backend.calls())
}

func TestSequentialRenewalsAreIndependent(t *testing.T) {
	backend := newTestBackend(t)
	mgr := sessionclient.New(backend.server.URL + "/api/auth/refresh")

	for i := 1; i <= 3; i++ {
		mgr.SetSession("stale-token")
		req, err := http.NewRequest(http.MethodGet, backend.server.URL+"/api/resource", nil)
		require.NoError(t, err)
		resp, err := mgr.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, i, backend.calls())
	}
}

func TestSetSessionAndClear(t *testing.T) {
	mgr := sessionclient.New("http://localhost/refresh")

	require.False(t, mgr.Authenticated())

	mgr.SetSession("some-token")
	require.True(t, mgr.Authenticated())
	require.Equal(t, "some-token", mgr.Token())

	mgr.Clear()
	require.False(t, mgr.Authenticated())
	require.Empty(t, mgr.Token())
}

// Package sessionclient holds the client-side half of the session scheme:
// an in-memory access credential attached to outgoing requests, and a
// single-flight renewal path against the refresh endpoint when the server
// rejects one.
package sessionclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
)

// ErrSessionExpired is surfaced when renewal fails. The caller must
// transition to a logged-out state; no further renewal is attempted for the
// requests that were waiting.
var ErrSessionExpired = errors.New("session expired")

type renewResult struct {
	token string
	err   error
}

// Manager owns the current access credential. The refresh credential lives
// in the cookie jar and never leaves it. All methods are safe for
// concurrent use.
type Manager struct {
	mu            sync.Mutex
	token         string
	authenticated bool

	renewing bool
	waiters  []chan renewResult // resolved FIFO when renewal settles

	client             *http.Client
	refreshURL         string
	onSessionDestroyed func()
}

type Option func(*Manager)

// WithHTTPClient substitutes the underlying client. A cookie jar is added
// when the client has none, since the refresh credential travels by cookie.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.client = client
	}
}

// WithSessionDestroyedHook registers the callback fired when renewal fails
// and the session is torn down.
func WithSessionDestroyedHook(hook func()) Option {
	return func(m *Manager) {
		m.onSessionDestroyed = hook
	}
}

func New(refreshURL string, opts ...Option) *Manager {
	m := &Manager{refreshURL: refreshURL}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = &http.Client{}
	}
	if m.client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		m.client.Jar = jar
	}
	return m
}

// HTTPClient exposes the underlying client so login requests go through the
// same cookie jar that renewal reads the refresh credential from.
func (m *Manager) HTTPClient() *http.Client {
	return m.client
}

// SetSession stores the access credential obtained from login.
func (m *Manager) SetSession(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.authenticated = token != ""
}

// Clear drops the in-memory session state.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.authenticated = false
}

func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// Restore attempts to rebuild a session at startup from the refresh
// credential persisted in the cookie jar.
func (m *Manager) Restore() error {
	_, err := m.renew()
	return err
}

// Do sends the request with the current access credential attached. On a 401
// it performs (or joins) a single renewal and retries the original request
// exactly once; a retry that fails authorization again is returned as-is, a
// terminal failure.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	resp, err := m.send(req, m.Token())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	token, err := m.renew()
	if err != nil {
		return nil, err
	}
	return m.send(req, token)
}

func (m *Manager) send(req *http.Request, token string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("cannot replay request body: %w", err)
		}
		clone.Body = body
	}
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return m.client.Do(clone)
}

// renew is the single-flight coordination point. The first caller starts the
// renewal; everyone who fails authorization while it is in flight is queued
// behind the same attempt instead of issuing a duplicate call. Concurrent
// renewal calls against the same refresh credential would race against any
// rotation policy, so this is mandatory, not an optimization.
func (m *Manager) renew() (string, error) {
	ch := make(chan renewResult, 1)

	m.mu.Lock()
	m.waiters = append(m.waiters, ch)
	started := m.renewing
	m.renewing = true
	m.mu.Unlock()

	if !started {
		go m.doRenew()
	}

	res := <-ch
	return res.token, res.err
}

// doRenew performs the actual call to the refresh endpoint and settles every
// queued waiter, in FIFO order, with the same outcome. Partial success is
// not a valid state: on failure all waiters are rejected uniformly and the
// session-destroyed hook fires once.
func (m *Manager) doRenew() {
	token, err := m.callRefreshEndpoint()

	m.mu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.renewing = false
	var destroyed func()
	if err != nil {
		m.token = ""
		m.authenticated = false
		destroyed = m.onSessionDestroyed
	} else {
		m.token = token
		m.authenticated = true
	}
	m.mu.Unlock()

	for _, ch := range waiters {
		ch <- renewResult{token: token, err: err}
	}
	if destroyed != nil {
		destroyed()
	}
}

func (m *Manager) callRefreshEndpoint() (string, error) {
	// No body: the refresh credential travels in its cookie via the jar.
	req, err := http.NewRequest(http.MethodPost, m.refreshURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: refresh endpoint returned %d", ErrSessionExpired, resp.StatusCode)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.Token == "" {
		return "", fmt.Errorf("%w: malformed refresh response", ErrSessionExpired)
	}
	return parsed.Token, nil
}

package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-script/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin exchanges the admin credentials for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, CodeInvalidBody, "invalid JSON body")
		return
	}

	token, exp, err := s.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.logger.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		fail(w, CodeUnauthenticated, "invalid credentials")
		return
	case err != nil:
		s.logger.Error("login error", "error", err)
		fail(w, CodeInternal, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(exp).Round(time.Second).Seconds()),
	})
}

// handleWSTicket issues a single-use WebSocket ticket so the bearer token
// never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	username, _ := r.Context().Value(ctxKeyUsername).(string) //nolint:errcheck // set by authMiddleware
	ticket, err := s.tickets.issue(username)
	if err != nil {
		fail(w, CodeInternal, "failed to generate ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// expire after ticketTTL.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
	now     func() time.Time
}

type ticketEntry struct {
	username  string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry), now: time.Now}
}

func (ts *ticketStore) issue(username string) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	ticket := hex.EncodeToString(b)

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{username: username, expiresAt: ts.now().Add(ticketTTL)}
	ts.mu.Unlock()
	return ticket, nil
}

// redeem consumes a ticket and returns the username it was issued to.
func (ts *ticketStore) redeem(ticket string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return "", false
	}
	delete(ts.tickets, ticket)
	return entry.username, ts.now().Before(entry.expiresAt)
}

func (ts *ticketStore) clean() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := ts.now()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.clean()
		}
	}
}

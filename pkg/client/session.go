package client

import (
	"strings"
	"sync/atomic"
)

// Session carries the tenant identity and bearer token of one login. It is
// dropped on the first 401 or 403 and never reused afterwards.
type Session struct {
	TenantID string

	token   string
	dropped atomic.Bool
}

func NewSession(tenantID, token string) (*Session, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(token) == "" {
		return nil, ErrNoSession
	}

	return &Session{TenantID: tenantID, token: token}, nil
}

func (s *Session) Drop() {
	s.dropped.Store(true)
}

func (s *Session) Active() bool {
	return s != nil && !s.dropped.Load()
}

func (s *Session) authorization() string {
	return "Bearer " + s.token
}

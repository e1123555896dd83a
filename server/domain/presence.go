package domain

import "sync"

// PresenceRegistry maps usernames to their single authoritative live
// connection. A second login for the same username replaces the first; the
// displaced session is returned so the caller can close it. Nothing here is
// persisted: the registry starts empty on every process start.
type PresenceRegistry struct {
	mu     sync.RWMutex
	byUser map[string]*Session
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{byUser: make(map[string]*Session)}
}

func (p *PresenceRegistry) Register(username string, s *Session) (displaced *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.byUser[username]
	if prev == s {
		return nil
	}
	p.byUser[username] = s
	return prev
}

// Unregister removes the mapping only if s is still the authoritative handle
// for its username, so a replaced connection disconnecting late cannot knock
// its successor offline.
func (p *PresenceRegistry) Unregister(s *Session) bool {
	if s == nil || s.Username == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.byUser[s.Username] != s {
		return false
	}
	delete(p.byUser, s.Username)
	return true
}

func (p *PresenceRegistry) Find(username string) (*Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.byUser[username]
	return s, ok
}

func (p *PresenceRegistry) IsOnline(username string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.byUser[username]
	return ok
}

func (p *PresenceRegistry) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.byUser)
}

func (p *PresenceRegistry) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.byUser = make(map[string]*Session)
}

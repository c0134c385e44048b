package predict

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sound-predict/api/internal/universe"
)

// Sessions keeps one Screen per browser visit. A visit starts when the
// prediction page is opened and ends when it is opened again or goes idle.
type Sessions struct {
	pred Predictor
	log  *slog.Logger
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	screens map[string]*session
}

type session struct {
	screen   *Screen
	lastSeen time.Time
}

func NewSessions(pred Predictor, ttl time.Duration, log *slog.Logger) *Sessions {
	if log == nil {
		log = slog.Default()
	}
	return &Sessions{
		pred:    pred,
		log:     log,
		ttl:     ttl,
		now:     time.Now,
		screens: make(map[string]*session),
	}
}

// Open starts a fresh screen for u and returns its id. The previous screen
// under prevID, if any, is dropped.
func (s *Sessions) Open(prevID string, u universe.Universe) (string, *Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	if prevID != "" {
		delete(s.screens, prevID)
	}
	return s.createLocked(u)
}

// Lookup returns the screen under id when it was opened for u, or starts a
// new one otherwise. Idle screens are swept first, like in Open.
func (s *Sessions) Lookup(id string, u universe.Universe) (string, *Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	if sess, ok := s.screens[id]; ok && sess.screen.Universe == u {
		sess.lastSeen = s.now()
		return id, sess.screen
	}
	if id != "" {
		delete(s.screens, id)
	}
	return s.createLocked(u)
}

// Len is the number of live screens.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.screens)
}

func (s *Sessions) createLocked(u universe.Universe) (string, *Screen) {
	id := uuid.NewString()
	sc := NewScreen(u, s.pred, s.log.With("session", id))
	s.screens[id] = &session{screen: sc, lastSeen: s.now()}
	return id, sc
}

func (s *Sessions) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.screens {
		if sess.lastSeen.Before(cutoff) && !sess.screen.Loading() {
			delete(s.screens, id)
		}
	}
}

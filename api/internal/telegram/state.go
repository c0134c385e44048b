package telegram

import (
	"sync/atomic"
	"time"

	"sound-predict/api/internal/predict"
	"sound-predict/api/internal/universe"
)

type chatScreen struct {
	screen   *predict.Screen
	lastSeen atomic.Int64 // unix nanoseconds
}

func (r *Router) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// screenFor returns the chat's screen for u, replacing one opened for a
// different universe.
func (r *Router) screenFor(chatID int64, u universe.Universe) *predict.Screen {
	now := r.clock().UnixNano()
	fresh := &chatScreen{screen: predict.NewScreen(u, r.Predictor, r.logger().With("chat_id", chatID))}
	fresh.lastSeen.Store(now)
	for {
		v, loaded := r.screens.LoadOrStore(chatID, fresh)
		cs := v.(*chatScreen)
		if !loaded {
			return fresh.screen
		}
		if cs.screen.Universe == u {
			cs.lastSeen.Store(now)
			return cs.screen
		}
		if r.screens.CompareAndSwap(chatID, cs, fresh) {
			return fresh.screen
		}
	}
}

func (r *Router) dropScreen(chatID int64) { r.screens.Delete(chatID) }

// SweepIdle drops chat screens untouched for longer than ttl and returns how
// many went. Screens with a submission in flight stay.
func (r *Router) SweepIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.clock().Add(-ttl).UnixNano()
	n := 0
	r.screens.Range(func(k, v any) bool {
		cs := v.(*chatScreen)
		if cs.lastSeen.Load() < cutoff && !cs.screen.Loading() && r.screens.CompareAndDelete(k, cs) {
			n++
		}
		return true
	})
	return n
}

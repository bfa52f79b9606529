package websocket

import (
	"sync"
	"time"
)

type processedRequest struct {
	UserID    string
	MatchID   string
	Timestamp time.Time
}

// RequestTracker remembers the request ids of match-result messages so a
// retried report is applied once. Ids are scoped to the user that sent them. Old entries are dropped by Cleanup, which
// the janitor schedules.
type RequestTracker struct {
	mu        sync.Mutex
	processed map[string]processedRequest
	now       func() time.Time
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		processed: make(map[string]processedRequest),
		now:       time.Now,
	}
}

func requestKey(userID, requestID string) string {
	return userID + "\x00" + requestID
}

// MarkProcessed records the user's requestID and reports whether it was new.
// An empty id is never tracked and always counts as new.
func (rt *RequestTracker) MarkProcessed(requestID, userID, matchID string) bool {
	if requestID == "" {
		return true
	}
	key := requestKey(userID, requestID)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, seen := rt.processed[key]; seen {
		return false
	}
	rt.processed[key] = processedRequest{
		UserID:    userID,
		MatchID:   matchID,
		Timestamp: rt.now(),
	}
	return true
}

// Unmark forgets a request whose processing failed so the client may retry.
func (rt *RequestTracker) Unmark(requestID, userID string) {
	if requestID == "" {
		return
	}
	rt.mu.Lock()
	delete(rt.processed, requestKey(userID, requestID))
	rt.mu.Unlock()
}

// Count returns the number of tracked requests.
func (rt *RequestTracker) Count() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.processed)
}

// Cleanup removes entries older than retention.
func (rt *RequestTracker) Cleanup(retention time.Duration) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	cutoff := rt.now().Add(-retention)
	removed := 0
	for id, req := range rt.processed {
		if req.Timestamp.Before(cutoff) {
			delete(rt.processed, id)
			removed++
		}
	}
	return removed
}

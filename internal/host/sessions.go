package host

import (
	"sort"
	"time"
)

// OpenSession registers a new session on the host and returns its id.
// Ids are assigned monotonically and never reused.
func (h *Host) OpenSession(rec SessionRecord, now time.Time) int {
	h.nextSession++
	rec.ID = h.nextSession
	rec.OpenedAt = now
	h.sessions[rec.ID] = rec
	return rec.ID
}

// CloseSession removes a session. It returns false if the session was not open.
func (h *Host) CloseSession(id int) bool {
	if _, ok := h.sessions[id]; !ok {
		return false
	}
	delete(h.sessions, id)
	return true
}

// Session returns an open session by id.
func (h *Host) Session(id int) (SessionRecord, bool) {
	rec, ok := h.sessions[id]
	return rec, ok
}

// HasSession reports whether id is open.
func (h *Host) HasSession(id int) bool {
	_, ok := h.sessions[id]
	return ok
}

// Sessions returns the "who is connected" set ordered by id.
func (h *Host) Sessions() []SessionRecord {
	out := make([]SessionRecord, 0, len(h.sessions))
	for _, rec := range h.sessions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SessionCount returns the number of open sessions.
func (h *Host) SessionCount() int {
	return len(h.sessions)
}

package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filter selects entries for Replay. Zero fields match everything.
type Filter struct {
	Host  string // matches source or target host
	Event Event
	From  time.Time
	To    time.Time
}

// Summary counts outcomes across replayed entries.
type Summary struct {
	Total          int            `json:"total"`
	OK             int            `json:"ok"`
	Refused        int            `json:"refused"`
	ByOutcome      map[string]int `json:"by_outcome"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and their summary.
type ReplayResult struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter.
// Malformed lines are skipped; Verify is the integrity check.
func Replay(path string, filter Filter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{Summary: Summary{ByOutcome: make(map[string]int)}}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !filter.match(entry) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		result.Summary.add(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func (f Filter) match(e Entry) bool {
	if f.Host != "" && e.Source.Host != f.Host && e.Target.Host != f.Host {
		return false
	}
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

func (s *Summary) add(e Entry) {
	s.Total++
	s.ByOutcome[e.Outcome]++
	if e.Outcome == "ok" {
		s.OK++
	} else {
		s.Refused++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}

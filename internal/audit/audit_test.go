package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	return l, path
}

func testEntry(outcome string) Entry {
	return Entry{
		Timestamp: "2026-01-02T03:04:05.000Z",
		Event:     EventConnect,
		Source:    Endpoint{Host: "home", Login: "player"},
		Target:    Endpoint{Host: "gateway", Login: "guest"},
		Port:      22,
		SessionID: 1,
		Outcome:   outcome,
	}
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 5; i++ {
		if err := l.Record(testEntry("ok")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		if err := l.Record(testEntry("auth_failed")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"auth_failed"`, `"ok"`, 1)
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected tampered chain to be invalid")
	}
	if result.ErrorLine != 3 {
		t.Fatalf("expected error at line 3, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsBadGenesis(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry("ok"))
	l.Record(testEntry("ok"))
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	os.WriteFile(path, []byte(lines[1]+"\n"), 0600)

	result := Verify(path)
	if result.Valid || result.ErrorLine != 1 {
		t.Fatalf("expected genesis failure at line 1, got %+v", result)
	}
}

func TestReopenContinuesChain(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry("ok"))
	l.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	l2.Record(testEntry("ok"))
	l2.Close()

	if result := Verify(path); !result.Valid || result.Lines != 2 {
		t.Fatalf("expected 2-line valid chain after reopen, got %+v", result)
	}
}

func TestConcurrentRecordsKeepChainValid(t *testing.T) {
	l, path := newTestLog(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(testEntry("ok"))
		}()
	}
	wg.Wait()
	l.Close()

	if result := Verify(path); !result.Valid || result.Lines != 20 {
		t.Fatalf("expected 20-line valid chain, got %+v", result)
	}
}

func TestReplayFiltersByHostAndEvent(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry("ok"))
	other := testEntry("net_denied")
	other.Target.Host = "db"
	l.Record(other)
	disc := testEntry("ok")
	disc.Event = EventDisconnect
	l.Record(disc)
	l.Close()

	res, err := Replay(path, Filter{Host: "gateway"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Total != 2 {
		t.Fatalf("expected 2 gateway entries, got %d", res.Summary.Total)
	}

	res, _ = Replay(path, Filter{Event: EventConnect})
	if res.Summary.OK != 1 || res.Summary.Refused != 1 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if !strings.Contains(FormatTimeline(res), "NET_DENIED") {
		t.Error("expected timeline to show refused outcome")
	}
}

func TestFormatTimelineEmpty(t *testing.T) {
	if got := FormatTimeline(&ReplayResult{}); got != "No entries found.\n" {
		t.Errorf("unexpected %q", got)
	}
}

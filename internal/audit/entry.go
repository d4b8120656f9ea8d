package audit

// Event names the session lifecycle step an entry records.
type Event string

const (
	EventConnect    Event = "connect"
	EventDisconnect Event = "disconnect"
	EventTransfer   Event = "transfer"
)

// Endpoint is a host/login pair as it appears in the log.
type Endpoint struct {
	Host  string `json:"host"`
	Login string `json:"login"`
}

// Entry is one line in the hash-chained JSONL audit log.
// All fields are structs (no map[string]any) so json.Marshal field order stays
// deterministic for hashing.
type Entry struct {
	Timestamp string   `json:"ts"`
	Event     Event    `json:"event"`
	Source    Endpoint `json:"source"`
	Target    Endpoint `json:"target"`
	Port      int      `json:"port,omitempty"`
	SessionID int      `json:"session_id,omitempty"`
	Outcome   string   `json:"outcome"`
	Reason    string   `json:"reason,omitempty"`
	Simulated bool     `json:"simulated,omitempty"`
	PrevHash  string   `json:"prev_hash"`
}

// Recorder accepts audit entries. *Log implements it.
type Recorder interface {
	Record(Entry) error
}

type discard struct{}

func (discard) Record(Entry) error { return nil }

// Discard is a Recorder that drops everything.
var Discard Recorder = discard{}

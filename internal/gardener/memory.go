package gardener

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const maxRecords = 10

// CycleRecord captures what happened in a single gardener cycle.
type CycleRecord struct {
	Cycle       uint64    `json:"cycle"`
	At          time.Time `json:"at"`
	Action      string    `json:"action"`
	Rationale   string    `json:"rationale,omitempty"`
	Live        int       `json:"live"`
	Thirsty     int       `json:"thirsty"`
	Infested    int       `json:"infested"`
	Temperature int       `json:"temperature"`
	CrisisLevel string    `json:"crisis_level"`
	Error       string    `json:"error,omitempty"`
}

// CycleMemory keeps the most recent gardener cycle records on disk.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. Returns empty memory if the
// file is missing or unreadable.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("gardener memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal gardener memory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write gardener memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Last returns the newest record.
func (m *CycleMemory) Last() (CycleRecord, bool) {
	if len(m.Records) == 0 {
		return CycleRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}

// Summary renders the last n records one per line, newest last.
func (m *CycleMemory) Summary(n int, now time.Time) string {
	start := max(len(m.Records)-n, 0)
	var b strings.Builder
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "- cycle %d (%s): action=%s, live=%d, thirsty=%d, infested=%d, crisis=%s\n",
			r.Cycle, humanize.RelTime(r.At, now, "ago", "from now"),
			r.Action, r.Live, r.Thirsty, r.Infested, r.CrisisLevel)
	}
	return b.String()
}

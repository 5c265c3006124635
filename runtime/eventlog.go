package runtime

import "github.com/pithecene-io/uproot/types"

// maxLogEntries caps the telemetry event log. Older entries are dropped.
const maxLogEntries = 500

// eventLog is a bounded ring of locally observed events.
type eventLog struct {
	entries []types.LogEntry
	next    int
	full    bool
	dropped int
}

func newEventLog() *eventLog {
	return &eventLog{entries: make([]types.LogEntry, 0, 64)}
}

func (l *eventLog) add(e types.LogEntry) {
	if !l.full {
		l.entries = append(l.entries, e)
		if len(l.entries) == maxLogEntries {
			l.full = true
		}
		return
	}
	l.entries[l.next] = e
	l.next = (l.next + 1) % maxLogEntries
	l.dropped++
}

// list returns the entries oldest first.
func (l *eventLog) list() []types.LogEntry {
	out := make([]types.LogEntry, 0, len(l.entries))
	if !l.full {
		return append(out, l.entries...)
	}
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

func (l *eventLog) len() int {
	return len(l.entries)
}

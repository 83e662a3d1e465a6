package node

import "sync"

// logRing is a bounded ring buffer backing GET /logs: it keeps the most
// recent capacity lines and serves a windowed tail without re-reading a
// log file from disk.
type logRing struct {
	mu       sync.Mutex
	lines    []string
	capacity int
	total    int // total lines ever appended, for start_line addressing
}

func newLogRing(capacity int) *logRing {
	if capacity <= 0 {
		capacity = 1000
	}
	return &logRing{capacity: capacity}
}

func (r *logRing) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	r.total++
	if len(r.lines) > r.capacity {
		r.lines = r.lines[len(r.lines)-r.capacity:]
	}
}

// Tail returns up to nbLines starting at startLine (1-indexed, over the
// full history, not just what's retained). Lines older than what the ring
// still holds are simply absent from the result.
func (r *logRing) Tail(startLine, nbLines int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if nbLines <= 0 {
		nbLines = len(r.lines)
	}
	oldestRetained := r.total - len(r.lines) + 1
	if startLine < oldestRetained {
		startLine = oldestRetained
	}
	if startLine < 1 {
		startLine = 1
	}

	offset := startLine - oldestRetained
	if offset < 0 || offset >= len(r.lines) {
		return nil
	}
	end := offset + nbLines
	if end > len(r.lines) {
		end = len(r.lines)
	}
	out := make([]string, end-offset)
	copy(out, r.lines[offset:end])
	return out
}

// Package tui provides a Bubble Tea terminal UI for petcore: a scrolling
// transcript of what the pet says and does, a status bar, and an input
// line for chatting with the pet.
package tui

// History is a fixed-capacity ring of submitted input lines with a
// navigation cursor for Up/Down recall.
type History struct {
	buf    []string
	start  int // index of the oldest entry in buf
	n      int // number of stored entries
	cursor int // -1 when not navigating, else 0 (oldest) .. n-1 (newest)
}

// NewHistory creates a history ring holding at most size entries.
func NewHistory(size int) *History {
	return &History{buf: make([]string, max(size, 1)), cursor: -1}
}

// at returns the i-th oldest entry.
func (h *History) at(i int) string {
	return h.buf[(h.start+i)%len(h.buf)]
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.n }

// Push records a line, evicting the oldest once full. Repeating the newest
// line is a no-op.
func (h *History) Push(line string) {
	if h.n > 0 && h.at(h.n-1) == line {
		return
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = line
		h.n++
		return
	}
	h.buf[h.start] = line
	h.start = (h.start + 1) % len(h.buf)
}

// Prev steps back to an older entry and stays on the oldest one.
func (h *History) Prev() (string, bool) {
	if h.n == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = h.n - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.at(h.cursor), true
}

// Next steps forward to a newer entry. Stepping past the newest ends
// navigation and reports false.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= h.n {
		h.cursor = -1
		return "", false
	}
	return h.at(h.cursor), true
}

// ResetCursor ends navigation.
func (h *History) ResetCursor() {
	h.cursor = -1
}

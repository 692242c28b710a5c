package world

import "stratagem.ai/internal/game"

// Frame is one retained tick summary: the totals trend trackers feed on.
type Frame struct {
	Tick     int
	Resource map[game.PlayerID]int
	Score    map[game.PlayerID]int
	Entities int
}

// History keeps a bounded window of recent frames, oldest first.
type History struct {
	frames []Frame
	window int
}

func NewHistory(window int) *History {
	if window < 1 {
		window = 1
	}
	return &History{window: window}
}

func (h *History) Push(f Frame) {
	h.frames = append(h.frames, f)
	if len(h.frames) > h.window {
		h.frames = h.frames[len(h.frames)-h.window:]
	}
}

func (h *History) Len() int { return len(h.frames) }

// Frames returns the retained window, oldest first. Callers must not
// mutate it.
func (h *History) Frames() []Frame { return h.frames }

func (h *History) Last() (Frame, bool) {
	if len(h.frames) == 0 {
		return Frame{}, false
	}
	return h.frames[len(h.frames)-1], true
}

// Lookback returns the frame n entries before the newest.
func (h *History) Lookback(n int) (Frame, bool) {
	i := len(h.frames) - 1 - n
	if i < 0 {
		return Frame{}, false
	}
	return h.frames[i], true
}

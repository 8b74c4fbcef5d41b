package document

import "noteserver/backend/internal/ot/delta"

const defaultHistoryCapacity = 20

// History keeps the inverse deltas for undo and redo. Recording a fresh edit
// clears the redo stack; both stacks are capped so a long session cannot
// grow without bound.
type History struct {
	capacity int
	undo     []delta.Delta
	redo     []delta.Delta
}

func NewHistory() *History {
	return &History{capacity: defaultHistoryCapacity}
}

// Record pushes the inverse of a fresh edit and invalidates redo.
func (h *History) Record(inverse delta.Delta) {
	h.redo = h.redo[:0]
	h.undo = append(h.undo, inverse)
	if len(h.undo) > h.capacity {
		h.undo = h.undo[1:]
	}
}

func (h *History) PopUndo() (delta.Delta, bool) {
	if len(h.undo) == 0 {
		return delta.Delta{}, false
	}
	d := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return d, true
}

func (h *History) PushRedo(d delta.Delta) {
	h.redo = append(h.redo, d)
	if len(h.redo) > h.capacity {
		h.redo = h.redo[1:]
	}
}

func (h *History) PopRedo() (delta.Delta, bool) {
	if len(h.redo) == 0 {
		return delta.Delta{}, false
	}
	d := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return d, true
}

func (h *History) PushUndo(d delta.Delta) {
	h.undo = append(h.undo, d)
	if len(h.undo) > h.capacity {
		h.undo = h.undo[1:]
	}
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

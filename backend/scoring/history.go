// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scoring

// DefaultHistoryDepth is the number of undo steps kept per innings.
const DefaultHistoryDepth = 20

// HistoryStack keeps bounded undo and redo stacks of full innings snapshots.
// Entries are deep copies and never alias the live state.
type HistoryStack struct {
	undo  []InningsState
	redo  []InningsState
	depth int
}

// NewHistoryStack creates a history capped at depth entries per stack.
func NewHistoryStack(depth int) *HistoryStack {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &HistoryStack{depth: depth}
}

// Push records the pre-mutation state and clears the redo stack.
func (h *HistoryStack) Push(s InningsState) {
	h.undo = pushBounded(h.undo, s.Clone(), h.depth)
	h.redo = nil
}

// Undo returns the previous state and stores current on the redo stack.
// ok is false when there is nothing to undo.
func (h *HistoryStack) Undo(current InningsState) (prev InningsState, ok bool) {
	if len(h.undo) == 0 {
		return current, false
	}
	prev = h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = pushBounded(h.redo, current.Clone(), h.depth)
	return prev, true
}

// Redo reverses the last Undo.
func (h *HistoryStack) Redo(current InningsState) (next InningsState, ok bool) {
	if len(h.redo) == 0 {
		return current, false
	}
	next = h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = pushBounded(h.undo, current.Clone(), h.depth)
	return next, true
}

// Clear drops both stacks.
func (h *HistoryStack) Clear() {
	h.undo = nil
	h.redo = nil
}

func (h *HistoryStack) CanUndo() bool { return len(h.undo) > 0 }
func (h *HistoryStack) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the configured cap.
func (h *HistoryStack) Depth() int { return h.depth }

// UndoLen returns the number of undo entries.
func (h *HistoryStack) UndoLen() int { return len(h.undo) }

func pushBounded(stack []InningsState, s InningsState, depth int) []InningsState {
	stack = append(stack, s)
	if over := len(stack) - depth; over > 0 {
		// Copy down so evicted snapshots are released.
		n := copy(stack, stack[over:])
		clear(stack[n:])
		stack = stack[:n]
	}
	return stack
}

package editor

type stateSnapshot struct {
	doc *Document
	sel Selection
}

type historyState struct {
	undo []stateSnapshot
	redo []stateSnapshot
}

func (s *State) snapshot() stateSnapshot {
	return stateSnapshot{doc: s.doc, sel: s.sel}
}

func (s *State) restore(snap stateSnapshot) {
	s.doc = snap.doc
	s.sel = snap.sel.clamp(len(s.doc.Elements))
	s.version++
}

func (s *State) recordUndo(prev stateSnapshot) {
	limit := s.historyLimit
	if limit <= 0 {
		return
	}

	s.hist.undo = append(s.hist.undo, prev)
	if len(s.hist.undo) > limit {
		s.hist.undo = s.hist.undo[len(s.hist.undo)-limit:]
	}
	s.hist.redo = nil
}

func (s *State) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hist.undo) > 0
}

func (s *State) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hist.redo) > 0
}

// Undo откатывает последнюю записанную транзакцию.
func (s *State) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.hist.undo) == 0 {
		return false
	}

	cur := s.snapshot()
	i := len(s.hist.undo) - 1
	prev := s.hist.undo[i]
	s.hist.undo = s.hist.undo[:i]
	s.hist.redo = append(s.hist.redo, cur)

	s.restore(prev)
	return true
}

// Redo повторяет последнюю отмененную транзакцию.
func (s *State) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.hist.redo) == 0 {
		return false
	}

	cur := s.snapshot()
	i := len(s.hist.redo) - 1
	next := s.hist.redo[i]
	s.hist.redo = s.hist.redo[:i]

	if s.historyLimit > 0 {
		s.hist.undo = append(s.hist.undo, cur)
		if len(s.hist.undo) > s.historyLimit {
			s.hist.undo = s.hist.undo[len(s.hist.undo)-s.historyLimit:]
		}
	}

	s.restore(next)
	return true
}

package conversation

// Log is the ordered, append-only record of a run's turns.
// It is owned by a single orchestrator and is not safe for concurrent use.
type Log struct {
	turns []Turn
}

func NewLog() *Log {
	return &Log{}
}

// Append validates t and adds it after every existing turn.
func (l *Log) Append(t Turn) error {
	if err := t.Validate(); err != nil {
		return err
	}
	l.turns = append(l.turns, t)
	return nil
}

// LastWithRole returns the most recent turn with the given role.
// The boolean is false when no such turn has been appended yet.
func (l *Log) LastWithRole(role Role) (Turn, bool) {
	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].Role == role {
			return l.turns[i], true
		}
	}
	return Turn{}, false
}

// Turns returns a copy of the log in insertion order.
func (l *Log) Turns() []Turn {
	ret := make([]Turn, len(l.turns))
	copy(ret, l.turns)
	return ret
}

func (l *Log) Len() int {
	return len(l.turns)
}

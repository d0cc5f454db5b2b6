package activity

import "backend-strideup/internal/apperr"

type Action string

const (
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
	ActionDiscard  Action = "discard"
	ActionIngest   Action = "ingest"
	ActionEdit     Action = "edit"
)

// Recording reports whether the activity still accepts samples and edits.
func (s Status) Recording() bool {
	return s == StatusInProgress || s == StatusPaused
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDiscarded
}

// Transition returns the status an action leads to from s, or a state
// conflict when the action is not allowed. Ingest and edit keep the status.
func Transition(s Status, a Action) (Status, error) {
	switch a {
	case ActionPause:
		if s == StatusInProgress {
			return StatusPaused, nil
		}
	case ActionResume:
		if s == StatusPaused {
			return StatusInProgress, nil
		}
	case ActionComplete:
		if s.Recording() {
			return StatusCompleted, nil
		}
	case ActionDiscard:
		if s.Recording() {
			return StatusDiscarded, nil
		}
	case ActionIngest, ActionEdit:
		if s.Recording() {
			return s, nil
		}
	}
	return s, apperr.StateConflict("cannot %s an activity that is %s", a, s)
}

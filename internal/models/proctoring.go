package models

import "time"

type ProctoringEventKind string

const (
	EventTabSwitch      ProctoringEventKind = "tab_switch"
	EventFullscreenExit ProctoringEventKind = "fullscreen_exit"
	EventCopyPaste      ProctoringEventKind = "copy_paste"
)

// KnownProctoringEvent reports whether kind is one of the recognized
// violation kinds.
func KnownProctoringEvent(kind ProctoringEventKind) bool {
	switch kind {
	case EventTabSwitch, EventFullscreenExit, EventCopyPaste:
		return true
	}
	return false
}

// ProctoringLogEntry is one recorded violation. The log is append-only and
// ordered by occurrence time.
type ProctoringLogEntry struct {
	Kind       ProctoringEventKind `json:"kind"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// ProctoringState lives embedded on the attempt row so the ownership and
// uniqueness invariants stay local to one record.
type ProctoringState struct {
	TabSwitches       int                  `json:"tab_switches"`
	FullscreenExits   int                  `json:"fullscreen_exits"`
	CopyPasteAttempts int                  `json:"copy_paste_attempts"`
	Suspicious        bool                 `json:"suspicious"`
	Events            []ProctoringLogEntry `json:"events"`
}

// Record marks the attempt suspicious, bumps the matching counter and inserts
// the event into the log. The log stays ordered by occurrence time even when
// clients report events late.
func (s *ProctoringState) Record(kind ProctoringEventKind, occurredAt time.Time) {
	switch kind {
	case EventTabSwitch:
		s.TabSwitches++
	case EventFullscreenExit:
		s.FullscreenExits++
	case EventCopyPaste:
		s.CopyPasteAttempts++
	}
	s.Suspicious = true

	i := len(s.Events)
	for i > 0 && s.Events[i-1].OccurredAt.After(occurredAt) {
		i--
	}
	s.Events = append(s.Events, ProctoringLogEntry{})
	copy(s.Events[i+1:], s.Events[i:])
	s.Events[i] = ProctoringLogEntry{Kind: kind, OccurredAt: occurredAt}
}

// TotalWarnings is the violation count checked against the termination
// threshold.
func (s ProctoringState) TotalWarnings() int {
	return s.TabSwitches + s.FullscreenExits + s.CopyPasteAttempts
}

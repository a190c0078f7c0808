package pipeline

import "fmt"

// Stage is a step of a build attempt.
type Stage int

const (
	StageStarted Stage = iota
	StageFetching
	StageBuilding
	StageClassifying
	StageRecording
	StageUpdating
	StageDone
	StageAborted
)

var stageNames = [...]string{
	StageStarted:     "started",
	StageFetching:    "fetching",
	StageBuilding:    "building",
	StageClassifying: "classifying",
	StageRecording:   "recording",
	StageUpdating:    "updating",
	StageDone:        "done",
	StageAborted:     "aborted",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageAborted
}

// next is the only forward step allowed from each non-terminal stage.
// Every non-terminal stage may also move to StageAborted.
var next = map[Stage]Stage{
	StageStarted:     StageFetching,
	StageFetching:    StageBuilding,
	StageBuilding:    StageClassifying,
	StageClassifying: StageRecording,
	StageRecording:   StageUpdating,
	StageUpdating:    StageDone,
}

// CanTransition reports whether an attempt in stage s may move to stage to.
func (s Stage) CanTransition(to Stage) bool {
	if s.Terminal() {
		return false
	}
	if to == StageAborted {
		return true
	}
	n, ok := next[s]
	return ok && n == to
}

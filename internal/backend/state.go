package backend

// State is a step of a backend run.
type State string

const (
	StatePending            State = "pending"
	StateBuilding           State = "building"
	StateBuilt              State = "built"
	StateBuildFailed        State = "build-failed"
	StateConverting         State = "converting"
	StateConverted          State = "converted"
	StateConvertFailed      State = "convert-failed"
	StateMeasuring          State = "measuring"
	StateMeasured           State = "measured"
	StateMeasurementUnknown State = "measurement-unknown"
	StateRemediating        State = "remediating"
	StateRemediated         State = "remediated"
	StateRemediationFailed  State = "remediation-failed"
	StateSkippedRemediation State = "skipped-remediation"
	StateCompliant          State = "compliant"
	StateNonCompliant       State = "non-compliant"
	StateSkipped            State = "skipped"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case StateCompliant, StateNonCompliant, StateBuildFailed, StateConvertFailed, StateRemediationFailed, StateSkipped:
		return true
	}
	return false
}

// Failed reports whether s is one of the *-failed states.
func (s State) Failed() bool {
	switch s {
	case StateBuildFailed, StateConvertFailed, StateRemediationFailed:
		return true
	}
	return false
}

// transitions lists the allowed successors of each non-terminal state.
var transitions = map[State][]State{
	StatePending:            {StateBuilding, StateSkipped},
	StateBuilding:           {StateBuilt, StateBuildFailed},
	StateBuilt:              {StateConverting},
	StateConverting:         {StateConverted, StateConvertFailed},
	StateConverted:          {StateMeasuring},
	StateMeasuring:          {StateMeasured, StateMeasurementUnknown},
	StateMeasurementUnknown: {StateNonCompliant},
	StateMeasured:           {StateRemediating, StateSkippedRemediation},
	StateRemediating:        {StateRemediated, StateRemediationFailed},
	StateRemediated:         {StateCompliant, StateNonCompliant},
	StateSkippedRemediation: {StateCompliant, StateNonCompliant},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

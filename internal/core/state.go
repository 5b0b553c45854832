package core

// State is a step of the classification pipeline
type State int

const (
	// StateFiltered is the initial state: the candidate is checked against the exclusion list
	StateFiltered State = iota
	// StatePending means the classifier has been called and has not answered yet
	StatePending
	// StateResolved means a verdict is known and a record has been built
	StateResolved
	// StatePersisted means the record was written and the user notified
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateFiltered:
		return "filtered"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StatePersisted:
		return "persisted"
	default:
		return "invalid"
	}
}

// Outcome describes where a single pipeline run stopped and why
type Outcome struct {
	State        State         `json:"-"`
	StateName    string        `json:"state"`
	Trace        []State       `json:"-"`
	Record       *Record       `json:"record,omitempty"`
	Excluded     bool          `json:"excluded"`
	Skipped      bool          `json:"skipped"`
	Notification *Notification `json:"notification,omitempty"`
	Err          error         `json:"-"`
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.StateName = s.String()
	o.Trace = append(o.Trace, s)
}

// Verdict returns the resolved verdict, or VerdictUnknown when the run never resolved
func (o *Outcome) Verdict() Verdict {
	if o.Record == nil {
		return VerdictUnknown
	}
	return o.Record.Verdict
}

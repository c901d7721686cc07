package ir

// TimedFact is a ground atom with the timesteps it holds at.
//
// ID is an opaque provenance tag and takes no part in equality: two facts
// with equal atoms are the same logical fact. Empty Intervals means the fact
// is static and holds at every timestep.
type TimedFact struct {
	Atom      Atom        `json:"atom"`
	ID        string      `json:"id,omitempty"`
	Intervals IntervalSet `json:"intervals"`
}

// Static reports whether the fact holds at every timestep.
func (f TimedFact) Static() bool {
	return f.Intervals.Empty()
}

// Premise is a body fact at the timestep it was used.
type Premise struct {
	Atom Atom `json:"atom"`
	Time int  `json:"time"`
}

// DerivationRecord justifies the first derivation of Fact at Time.
type DerivationRecord struct {
	Fact     Atom      `json:"fact"`
	Time     int       `json:"time"`
	Rule     string    `json:"rule"`
	Premises []Premise `json:"premises"`
}

// BaseFact is a caller-supplied fact as it appears in a snapshot.
type BaseFact struct {
	Atom Atom   `json:"atom"`
	ID   string `json:"id,omitempty"`
}

// Snapshot is the serializable form of a finished interpretation.
//
// Frames[t] lists the dynamic facts at t; Static facts hold at every
// timestep. All slices are sorted with CompareAtoms (derivations by time,
// then fact) so equal interpretations produce equal snapshots.
type Snapshot struct {
	RunID        string             `json:"run_id"`
	MaxTimesteps int                `json:"max_timesteps"`
	Passes       int                `json:"passes"`
	Static       []Atom             `json:"static"`
	Frames       [][]Atom           `json:"frames"`
	Base         []BaseFact         `json:"base"`
	Derivations  []DerivationRecord `json:"derivations"`
}

package model

// Phase names as they appear in the annotation tooling. The integer labels
// are the classifier's class indices and are part of the record format.
const (
	PhaseSetup   = "Setup"
	PhaseTakeoff = "Takeoff"
	PhaseFlight  = "Flight"
	PhaseEntry   = "Entry"

	// PhaseUntagged marks frames no annotation span covers.
	PhaseUntagged = "untagged"
)

// PhaseNames lists the known phases in class-label order.
var PhaseNames = []string{PhaseSetup, PhaseTakeoff, PhaseFlight, PhaseEntry}

// PhaseLabel returns the class label for a phase name.
func PhaseLabel(phase string) (int, bool) {
	for i, name := range PhaseNames {
		if name == phase {
			return i, true
		}
	}
	return 0, false
}

package pipeline

// State is a run's position in the two-phase pipeline.
type State int

const (
	Idle State = iota
	ReadingInput
	ParsingStories
	TestCasesReady
	SynthesizingScenarios
	RenderingArtifacts
	Done
	ErrorAborted
)

var stateNames = [...]string{
	Idle:                  "Idle",
	ReadingInput:          "ReadingInput",
	ParsingStories:        "ParsingStories",
	TestCasesReady:        "TestCasesReady",
	SynthesizingScenarios: "SynthesizingScenarios",
	RenderingArtifacts:    "RenderingArtifacts",
	Done:                  "Done",
	ErrorAborted:          "ErrorAborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == Done || s == ErrorAborted
}

// next lists the forward transitions. ErrorAborted is reachable from every
// non-terminal state and is not listed. Idle may jump to TestCasesReady when
// phase two starts from previously produced records.
var next = map[State][]State{
	Idle:                  {ReadingInput, TestCasesReady},
	ReadingInput:          {ParsingStories},
	ParsingStories:        {TestCasesReady},
	TestCasesReady:        {SynthesizingScenarios},
	SynthesizingScenarios: {RenderingArtifacts, Done},
	RenderingArtifacts:    {Done},
}

// CanTransition reports whether a run in from may move to to.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == ErrorAborted {
		return true
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome describes what phase two did with the step vocabulary.
type Outcome string

const (
	Emitted       Outcome = "emitted"
	NothingToEmit Outcome = "nothing-to-emit"
	EmitSkipped   Outcome = "emit-skipped"
)

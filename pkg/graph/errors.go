package graph

import "fmt"

// ConfigError reports a defect in the graph definition itself. It is raised
// at build time and is never retried.
type ConfigError struct {
	Graph  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("graph %s: %s", e.Graph, e.Reason)
}

// NoMatchingEdgeError reports that a node produced an output no outgoing edge
// accepted. It signals a missing case in the graph definition and is fatal
// for the run.
type NoMatchingEdgeError struct {
	Graph string
	Node  string
}

func (e *NoMatchingEdgeError) Error() string {
	return fmt.Sprintf("graph %s: no matching edge out of node %s", e.Graph, e.Node)
}

// IterationLimitError reports that the run-wide call counter exceeded its
// cap. It distinguishes non-convergence from other failures.
type IterationLimitError struct {
	Limit int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit exceeded (%d)", e.Limit)
}

// StepLimitError reports that a traversal advanced through more edges than
// the step guard allows without reaching finish. It catches cycles whose
// nodes never consume the call budget, so it stays distinct from
// IterationLimitError and from the cap a caller configured.
type StepLimitError struct {
	Graph string
	Steps int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("graph %s: traversal exceeded %d steps without finishing", e.Graph, e.Steps)
}

// RetriesExhaustedError reports that a strict retry wrapper ran out of
// attempts without the condition ever holding.
type RetriesExhaustedError struct {
	Wrapper  string
	Attempts int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retry %s: exhausted after %d attempts", e.Wrapper, e.Attempts)
}

// Package nodes provides ready-made graph nodes for the common workflow
// steps: model calls with a tool loop, single tool invocations and pure
// data transforms.
//
// Invariants:
// - Every model round trip and standalone tool invocation consumes one
//   unit of the run's iteration budget.
// - Tool calls route through the context's Environment only.
// - Conversation state lives in the context's Session so forks and retries
//   see a consistent history.
package nodes

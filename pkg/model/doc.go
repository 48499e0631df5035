// Package model is the execution boundary between the engine and concrete
// LLM providers.
//
// Invariants:
// - The engine depends on the Provider interface only, never a vendor SDK.
// - Tool descriptors cross the boundary as JSON schema documents.
// - Streaming deltas are delivered in arrival order on the caller's goroutine.
package model

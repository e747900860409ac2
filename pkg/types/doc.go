// Package types defines the Todo entity, its lifecycle rules and validation,
// the Gateway persistence contract, and the standard errors shared by every
// backend and by the state container.
package types

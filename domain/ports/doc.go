// Package ports defines the collaborators the dispatcher depends on.
// These ports enable dependency inversion - the dispatch core depends on
// abstractions, and infrastructure adapters implement these interfaces.
package ports

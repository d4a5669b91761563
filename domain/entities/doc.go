// Package entities provides the core domain types of the dispatcher.
// Entry and type descriptors, handles, and the JSON wire shapes exchanged with
// the calling side all live here so every layer shares one vocabulary.
package entities

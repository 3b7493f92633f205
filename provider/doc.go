// Package provider defines the pluggable inference backend capability and
// the named registry the kernel exposes it through. Callers resolve a
// Provider by name (or the configured default) without coupling to a
// concrete implementation; concrete backends live in sub-packages
// (anthropic, openai) plus a deterministic MockProvider for tests.
//
// Registry lookups are lock-free: the name -> provider map is an immutable
// snapshot swapped atomically on registration, so a lookup racing a
// registration sees either the pre- or post-registration state, never a
// partial one.
package provider

// Package store provides the session-scoped persistence facade of the host
// kernel. Every operation is expressed as a logical Op (read, write, delete,
// scan) and must pass the configured QueryPolicy before it touches the pooled
// relational backend; the policy can allow, deny or rewrite the operation.
//
// The default PrefixPolicy rewrites every key under its scope's prefix, which
// namespaces tenants and makes cross-scope key collisions impossible by
// construction: a caller can never address another scope's keys because its
// keys are always rewritten under its own prefix.
//
// Policy denials surface as *PolicyError, distinct from backend errors, so
// callers can differentiate "forbidden" from "backend unavailable".
package store

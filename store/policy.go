package store

import "fmt"

// OpKind enumerates the logical operations a caller can request.
type OpKind int

const (
	// OpRead fetches the value stored under Key.
	OpRead OpKind = iota
	// OpWrite upserts Value under Key.
	OpWrite
	// OpDelete removes Key.
	OpDelete
	// OpScan lists all entries whose key starts with Prefix.
	OpScan
)

// String returns the operation name used in logs and errors.
func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	case OpScan:
		return "scan"
	default:
		return "unknown"
	}
}

// Op is one requested store operation before and after policy evaluation.
// Key is set for read/write/delete, Prefix for scans, Value for writes.
type Op struct {
	Kind   OpKind
	Key    string
	Prefix string
	Value  string
}

// PolicyError reports an operation denied by the access policy. It is a
// distinct type from backend errors so callers can branch with errors.As.
type PolicyError struct {
	Scope  string
	Op     Op
	Reason string
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	resource := e.Op.Key
	if e.Op.Kind == OpScan {
		resource = e.Op.Prefix
	}
	return fmt.Sprintf("policy denied %s of %q in scope %q: %s", e.Op.Kind, resource, e.Scope, e.Reason)
}

// QueryPolicy decides, for a scope and a requested operation, whether the
// operation may proceed and in what (possibly rewritten) form. Returning an
// error (conventionally *PolicyError) denies the operation before it reaches
// the backend.
type QueryPolicy interface {
	Authorize(scope string, op Op) (Op, error)
}

// PrefixPolicy deterministically rewrites every key and prefix to live under
// the scope's namespace. It never denies on its own; isolation holds by
// construction because a caller's keys are always rewritten under its own
// prefix.
type PrefixPolicy struct{}

// Authorize implements QueryPolicy.
func (PrefixPolicy) Authorize(scope string, op Op) (Op, error) {
	rewritten := op
	switch op.Kind {
	case OpRead, OpWrite, OpDelete:
		rewritten.Key = scopedKey(scope, op.Key)
	case OpScan:
		rewritten.Prefix = scopedKey(scope, op.Prefix)
	}
	return rewritten, nil
}

// scopedKey assumes scope ids never contain the "/" delimiter; the kernel
// assigns scopes from component ids, so scope "a" with key "b/k" cannot be
// confused with scope "a/b" and key "k".
func scopedKey(scope, key string) string {
	return scope + "/" + key
}

// DenyAllPolicy rejects every operation. Useful for locking a scope down and
// for exercising the policy error path in tests.
type DenyAllPolicy struct{}

// Authorize implements QueryPolicy.
func (DenyAllPolicy) Authorize(scope string, op Op) (Op, error) {
	return Op{}, &PolicyError{Scope: scope, Op: op, Reason: "all operations denied"}
}

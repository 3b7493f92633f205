package meshkernel

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/meshkernel/bindings"
	"github.com/hupe1980/meshkernel/mesh"
	"github.com/hupe1980/meshkernel/store"
)

// hostBinding adapts the kernel to the guest bindings facade for one
// component scope. Guest statements are mapped onto the store's logical
// operations so every query passes the policy gate; the kernel never hands
// raw guest SQL to the backend.
type hostBinding struct {
	kernel *Kernel
	scope  string
}

var _ bindings.Host = (*hostBinding)(nil)

// SQLQuery implements bindings.Host.
func (h *hostBinding) SQLQuery(ctx context.Context, sql string, params []string) ([]store.Row, error) {
	op, err := parseStatement(sql, params)
	if err != nil {
		return nil, err
	}
	if op.Kind != store.OpRead && op.Kind != store.OpScan {
		return nil, fmt.Errorf("query requires a SELECT statement")
	}
	return h.kernel.Store(h.scope).Query(ctx, op)
}

// SQLExecute implements bindings.Host.
func (h *hostBinding) SQLExecute(ctx context.Context, sql string, params []string) (uint32, error) {
	op, err := parseStatement(sql, params)
	if err != nil {
		return 0, err
	}
	if op.Kind != store.OpWrite && op.Kind != store.OpDelete {
		return 0, fmt.Errorf("execute requires a mutating statement")
	}
	affected, err := h.kernel.Store(h.scope).Execute(ctx, op)
	if err != nil {
		return 0, err
	}
	return uint32(affected), nil
}

// MeshCall implements bindings.Host.
func (h *hostBinding) MeshCall(ctx context.Context, target, method string, payload mesh.Payload) (mesh.Payload, error) {
	return h.kernel.MeshCall(ctx, target, method, payload)
}

// parseStatement classifies a guest statement into a logical store op. The
// supported surface is the micro-dialect guests are written against:
//
//	SELECT ... WHERE key = ?          -> read (params: key)
//	SELECT ... WHERE key LIKE ?       -> scan (params: prefix, trailing % optional)
//	INSERT/REPLACE/UPDATE ...         -> write (params: key, value)
//	DELETE ... WHERE key = ?          -> delete (params: key)
func parseStatement(sql string, params []string) (store.Op, error) {
	normalized := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		if strings.Contains(normalized, " LIKE ") {
			if len(params) < 1 {
				return store.Op{}, fmt.Errorf("scan statement requires a prefix parameter")
			}
			return store.Op{Kind: store.OpScan, Prefix: strings.TrimSuffix(params[0], "%")}, nil
		}
		if len(params) < 1 {
			return store.Op{}, fmt.Errorf("read statement requires a key parameter")
		}
		return store.Op{Kind: store.OpRead, Key: params[0]}, nil
	case strings.HasPrefix(normalized, "INSERT"),
		strings.HasPrefix(normalized, "REPLACE"),
		strings.HasPrefix(normalized, "UPDATE"):
		if len(params) < 2 {
			return store.Op{}, fmt.Errorf("write statement requires key and value parameters")
		}
		return store.Op{Kind: store.OpWrite, Key: params[0], Value: params[1]}, nil
	case strings.HasPrefix(normalized, "DELETE"):
		if len(params) < 1 {
			return store.Op{}, fmt.Errorf("delete statement requires a key parameter")
		}
		return store.Op{Kind: store.OpDelete, Key: params[0]}, nil
	default:
		return store.Op{}, fmt.Errorf("unsupported statement: %q", sql)
	}
}

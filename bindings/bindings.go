// Package bindings is the facade guest components call into. It re-exports
// only the two host interfaces a component needs - scoped SQL state and mesh
// calls - behind a pluggable Host. Outside a sandboxed execution context
// (no Host attached) every entry point is a deterministic no-op stub: queries
// return no rows, executes affect zero rows and mesh calls are accepted with
// an empty acknowledgement. That keeps host-side logic exercisable without a
// loaded guest.
package bindings

import (
	"context"

	"github.com/hupe1980/meshkernel/mesh"
	"github.com/hupe1980/meshkernel/store"
)

// acceptedReply is the stub acknowledgement returned by ServiceMesh.Call
// when no host is attached.
const acceptedReply = `{"status":"accepted"}`

// Host is the set of kernel entry points the facade forwards to when a
// component runs inside the sandboxed execution context.
type Host interface {
	SQLQuery(ctx context.Context, sql string, params []string) ([]store.Row, error)
	SQLExecute(ctx context.Context, sql string, params []string) (uint32, error)
	MeshCall(ctx context.Context, target, method string, payload mesh.Payload) (mesh.Payload, error)
}

// Bindings bundles the guest-facing interfaces for one component. A nil host
// selects the stub behavior.
type Bindings struct {
	host Host
}

// New constructs a bindings facade. Pass nil to get the deterministic stubs.
func New(host Host) *Bindings {
	return &Bindings{host: host}
}

// SQLState returns the scoped SQL interface.
func (b *Bindings) SQLState() SQLState { return SQLState{host: b.host} }

// ServiceMesh returns the mesh call interface.
func (b *Bindings) ServiceMesh() ServiceMesh { return ServiceMesh{host: b.host} }

// SQLState exposes the component's scoped key/value state through a SQL-like
// surface.
type SQLState struct {
	host Host
}

// Query executes a statement that returns rows. Failures are reported as an
// error description, never a panic.
func (s SQLState) Query(ctx context.Context, sql string, params []string) ([]store.Row, error) {
	if s.host == nil {
		return nil, nil
	}
	return s.host.SQLQuery(ctx, sql, params)
}

// Execute executes a statement that modifies data, returning the affected
// row count.
func (s SQLState) Execute(ctx context.Context, sql string, params []string) (uint32, error) {
	if s.host == nil {
		return 0, nil
	}
	return s.host.SQLExecute(ctx, sql, params)
}

// ServiceMesh exposes cross-component calls.
type ServiceMesh struct {
	host Host
}

// Call routes a method-addressed call to another component and returns its
// reply payload.
func (s ServiceMesh) Call(ctx context.Context, target, method string, payload mesh.Payload) (mesh.Payload, error) {
	if s.host == nil {
		return mesh.JSON(acceptedReply), nil
	}
	return s.host.MeshCall(ctx, target, method, payload)
}

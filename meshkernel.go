// Package meshkernel provides the host kernel that hosts and coordinates
// independently-built components across a single process and, optionally, a
// cluster of processes. It is the trust boundary and arbitration point: every
// cross-component call, every persisted state mutation and every
// externally-visible state change passes through it. Most applications
// interact with this package by:
//  1. Creating a Kernel via New() (optionally overriding the database DSN,
//     policy, provider registry, mesh configuration and logger)
//  2. Registering components (an inbound channel per component id, or the
//     SpawnComponent convenience which also runs the serve loop)
//  3. Dispatching calls with MeshCall, persisting state through Store and
//     streaming patches to observers via BroadcastPatch/Subscribe
//
// The kernel owns one instance of each subsystem - router, connection pool,
// broadcaster, session manager and provider registry - and is the single
// object other subsystems depend on; none of them reach into another's
// internals directly, and there are no package-level singletons.
package meshkernel

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/meshkernel/bindings"
	"github.com/hupe1980/meshkernel/broadcast"
	"github.com/hupe1980/meshkernel/logging"
	"github.com/hupe1980/meshkernel/mesh"
	"github.com/hupe1980/meshkernel/provider"
	"github.com/hupe1980/meshkernel/store"
	"github.com/hupe1980/meshkernel/vfs"
)

// DefaultInboundBuffer is the inbound queue depth used by SpawnComponent.
// A bounded queue applies backpressure to senders when a component falls
// behind.
const DefaultInboundBuffer = 32

// Options configures the Kernel instance. Configuration arrives as already
// parsed values; environment and file parsing happen upstream.
type Options struct {
	// DatabaseDSN is the sqlite connection string backing all scoped
	// stores. Defaults to a private in-memory database.
	DatabaseDSN string

	// Policy gates every store operation. Defaults to store.PrefixPolicy.
	Policy store.QueryPolicy

	// Registry holds the pluggable inference backends. Defaults to an
	// empty registry.
	Registry *provider.Registry

	// MeshConfig is this node's identity, listen address and bootstrap
	// peers. Defaults to a single node with a random identity.
	MeshConfig mesh.Config

	// Remote enables distributed dispatch when set together with
	// Membership being fed by the discovery layer.
	Remote mesh.RemoteDispatcher

	// Membership is the cluster view consulted for local dispatch misses.
	// Defaults to an empty view.
	Membership *mesh.Membership

	// MaxInFlightCalls bounds concurrently executing dispatches. Zero
	// means unlimited.
	MaxInFlightCalls int64

	// BroadcastCapacity is the per-observer queue depth. Defaults to
	// broadcast.DefaultCapacity.
	BroadcastCapacity int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Kernel is the high-level facade aggregating the router, store pool,
// broadcaster, session manager and provider registry.
type Kernel struct {
	opts        Options
	db          *sql.DB
	router      *mesh.Router
	broadcaster *broadcast.Broadcaster
	sessions    *vfs.Manager
	registry    *provider.Registry
	membership  *mesh.Membership
	logger      logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// New creates a Kernel with optional overrides. Any unset service is
// initialized with a safe default for local development and testing.
func New(optFns ...func(o *Options)) (*Kernel, error) {
	opts := Options{
		DatabaseDSN: ":memory:",
		Policy:      store.PrefixPolicy{},
		Registry:    provider.NewRegistry(),
		MeshConfig:  mesh.DefaultConfig(),
		Membership:  mesh.NewMembership(),
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", opts.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The pure-Go sqlite driver serializes writers anyway; a single pooled
	// connection avoids SQLITE_BUSY and keeps in-memory databases coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		opts.Logger.Debug("Failed to set sqlite busy_timeout", "error", err)
	}
	if _, err := db.Exec(store.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	k := &Kernel{
		opts: opts,
		db:   db,
		router: mesh.NewRouter(func(o *mesh.RouterOptions) {
			o.Remote = opts.Remote
			o.Membership = opts.Membership
			o.MaxInFlight = opts.MaxInFlightCalls
			o.Logger = opts.Logger
		}),
		broadcaster: broadcast.New(func(o *broadcast.Options) {
			o.Capacity = opts.BroadcastCapacity
			o.Logger = opts.Logger
		}),
		sessions:   vfs.NewManager(opts.Logger),
		registry:   opts.Registry,
		membership: opts.Membership,
		logger:     opts.Logger,
	}

	logging.Audit(k.logger, logging.SystemStartup{Component: "kernel"})
	k.logger.Info("Kernel initialized", "node_id", opts.MeshConfig.NodeID.String())
	return k, nil
}

// WithProvider creates a kernel with a single backend registered as the
// default under the name "default".
func WithProvider(p provider.Provider, optFns ...func(o *Options)) (*Kernel, error) {
	registry := provider.NewRegistry()
	registry.Register("default", p)
	registry.SetDefault("default")
	return New(append([]func(o *Options){func(o *Options) { o.Registry = registry }}, optFns...)...)
}

// RegisterComponent installs or overwrites the dispatch entry for a
// component id. Last registration wins; re-registering is not an error.
func (k *Kernel) RegisterComponent(id string, inbound chan<- *mesh.Message) {
	k.router.Register(id, inbound)
	logging.Audit(k.logger, logging.ComponentRegistered{ComponentID: id})
}

// SpawnComponent registers a component backed by a handler function and runs
// its serve loop until ctx is cancelled. It returns the inbound channel so
// callers can close it during their own teardown.
func (k *Kernel) SpawnComponent(ctx context.Context, id string, handler mesh.HandlerFunc) chan *mesh.Message {
	inbound := make(chan *mesh.Message, DefaultInboundBuffer)
	k.RegisterComponent(id, inbound)
	go mesh.Serve(ctx, inbound, handler)
	return inbound
}

// MeshCall routes one call to a component, locally or across the cluster,
// and waits for its reply. The kernel applies no timeout; pass a context
// with a deadline when one is needed.
func (k *Kernel) MeshCall(ctx context.Context, target, method string, payload mesh.Payload) (mesh.Payload, error) {
	return k.router.Dispatch(ctx, target, method, payload)
}

// Store returns the policy-gated store facade for a scope. Stores share the
// kernel's connection pool and are cheap to create per call site.
func (k *Kernel) Store(scope string) *store.SqlStore {
	return store.NewSqlStore(k.db, scope, k.opts.Policy, k.logger)
}

// DB exposes the shared connection pool for collaborators that manage their
// own statements (migrations, diagnostics). Scoped access should go through
// Store.
func (k *Kernel) DB() *sql.DB { return k.db }

// BroadcastPatch fans a content patch out to every subscribed observer.
// Zero subscribers is success.
func (k *Kernel) BroadcastPatch(patch json.RawMessage) {
	k.broadcaster.Broadcast(broadcast.NewPatch(patch))
}

// Subscribe registers a new observer of the patch stream. Callers must
// release the receiver with Close.
func (k *Kernel) Subscribe() *broadcast.Receiver {
	return k.broadcaster.Subscribe()
}

// Broadcaster exposes the fan-out service itself.
func (k *Kernel) Broadcaster() *broadcast.Broadcaster { return k.broadcaster }

// BeginSession opens a transactional workspace rooted at basePath.
func (k *Kernel) BeginSession(basePath string) (string, error) {
	return k.sessions.BeginSession(basePath)
}

// CommitSession atomically applies a workspace's staged mutations.
func (k *Kernel) CommitSession(sessionID string) error {
	if err := k.sessions.CommitSession(sessionID); err != nil {
		return err
	}
	basePath, _ := k.sessions.BasePath(sessionID)
	logging.Audit(k.logger, logging.SessionCommitted{SessionID: sessionID, BasePath: basePath})
	return nil
}

// AbandonSession discards a workspace's staged mutations.
func (k *Kernel) AbandonSession(sessionID string) error {
	return k.sessions.Abandon(sessionID)
}

// Sessions exposes the session manager for callers that stage and read
// workspace content directly.
func (k *Kernel) Sessions() *vfs.Manager { return k.sessions }

// Registry returns the provider registry for multi-backend access.
func (k *Kernel) Registry() *provider.Registry { return k.registry }

// Provider returns a specific backend by name.
func (k *Kernel) Provider(name string) (provider.Provider, bool) {
	return k.registry.Get(name)
}

// DefaultProvider returns the backend marked default.
func (k *Kernel) DefaultProvider() (provider.Provider, bool) {
	return k.registry.GetDefault()
}

// MeshConfig returns this node's immutable mesh configuration.
func (k *Kernel) MeshConfig() mesh.Config { return k.opts.MeshConfig }

// Membership returns the cluster membership view fed by the discovery
// layer.
func (k *Kernel) Membership() *mesh.Membership { return k.membership }

// Bindings returns the guest-facing facade bound to a component's scope.
func (k *Kernel) Bindings(scope string) *bindings.Bindings {
	return bindings.New(&hostBinding{kernel: k, scope: scope})
}

// Close shuts the kernel down: observers receive a Shutdown notification,
// open sessions are abandoned and the connection pool is closed. Close is
// idempotent.
func (k *Kernel) Close() error {
	k.closeOnce.Do(func() {
		logging.Audit(k.logger, logging.SystemShutdown{Reason: "kernel close"})
		k.broadcaster.Broadcast(broadcast.Shutdown())
		k.broadcaster.Close()
		if abandoned := k.sessions.AbandonOpen(); abandoned > 0 {
			k.logger.Warn("Abandoned open sessions at shutdown", "count", abandoned)
		}
		k.closeErr = k.db.Close()
	})
	return k.closeErr
}

package sodium

import "context"

// OperationKind identifies which engine boundary an Extension is wrapping.
type OperationKind string

const (
	// OpTransaction wraps one outermost Transaction call.
	OpTransaction OperationKind = "transaction"
	// OpCollectCycles identifies one GcCtx.CollectCycles pass. It is the
	// Kind of the Operation passed to OnCyclesCollected; collection passes
	// are not wrapped by Wrap.
	OpCollectCycles OperationKind = "collect_cycles"
)

// Operation describes the boundary an Extension hook is called for.
type Operation struct {
	Kind OperationKind
	Ctx  *SodiumCtx
}

// Extension provides hooks into the transaction and cycle-collection
// lifecycle, mirroring the engine's own boundary points rather than
// arbitrary user operations.
type Extension interface {
	// Name returns the extension's name.
	Name() string

	// Order determines extension execution order (lower = earlier).
	Order() int

	// Wrap intercepts an outermost transaction (OpTransaction).
	Wrap(ctx context.Context, next func() error, op *Operation) error

	// OnTransactionError is called when a transaction's propagation panics.
	OnTransactionError(err error, op *Operation)

	// OnCyclesCollected is called after a collect-cycles pass completes.
	OnCyclesCollected(stats CollectStats, op *Operation)

	// Dispose is called when the owning SodiumCtx is no longer used.
	Dispose()
}

// BaseExtension supplies no-op defaults for every Extension hook so
// concrete extensions only implement the ones they care about.
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a base extension with the given name.
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string { return e.name }

func (e *BaseExtension) Order() int { return 100 }

func (e *BaseExtension) Wrap(ctx context.Context, next func() error, op *Operation) error {
	return next()
}

func (e *BaseExtension) OnTransactionError(err error, op *Operation) {}

func (e *BaseExtension) OnCyclesCollected(stats CollectStats, op *Operation) {}

func (e *BaseExtension) Dispose() {}

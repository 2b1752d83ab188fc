package sodium

import (
	"fmt"
)

// ContractViolationError reports client misuse or an internal invariant
// break that has no meaningful recovery: calling Loop twice on one loop,
// sampling a CellLoop before it was looped, or a GcNode's reference count
// going negative. The cycle collector does not check its trace functions
// for consistency between passes.
type ContractViolationError struct {
	Op      string
	Message string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("sodium: contract violation in %s: %s", e.Op, e.Message)
}

// PropagationError wraps a panic recovered from a combinator's
// user-supplied function during update_node, tagged with the node that was
// running and a captured stack trace.
type PropagationError struct {
	Node  *Node
	Cause any
	Stack []byte
}

func (e *PropagationError) Error() string {
	name := "<transaction>"
	if e.Node != nil {
		name = e.Node.debugName()
	}
	return fmt.Sprintf("sodium: propagation error in %s: %v", name, e.Cause)
}

func (e *PropagationError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

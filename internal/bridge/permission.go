package bridge

import "errors"

// ErrPermissionPending is returned by Defer while another call waits
var ErrPermissionPending = errors.New("a call is already waiting for permission")

// PermissionGate tracks the microphone grant of one session and holds at most
// one call deferred until the host answers a permission request. It is owned
// by the session goroutine and is not safe for concurrent use.
type PermissionGate struct {
	granted bool
	pending *Call
}

// NewPermissionGate creates a gate. A gate created granted never defers.
func NewPermissionGate(granted bool) *PermissionGate {
	return &PermissionGate{granted: granted}
}

// Granted reports whether capture is currently allowed
func (g *PermissionGate) Granted() bool {
	return g.granted
}

// Pending reports whether a call is waiting
func (g *PermissionGate) Pending() bool {
	return g.pending != nil
}

// Defer parks a call until Resolve
func (g *PermissionGate) Defer(call Call) error {
	if g.pending != nil {
		return ErrPermissionPending
	}
	g.pending = &call
	return nil
}

// Resolve records the host's answer and releases the pending call, if any
func (g *PermissionGate) Resolve(granted bool) (Call, bool) {
	g.granted = granted
	return g.Drop()
}

// Drop empties the slot without changing the grant
func (g *PermissionGate) Drop() (Call, bool) {
	if g.pending == nil {
		return Call{}, false
	}
	call := *g.pending
	g.pending = nil
	return call, true
}

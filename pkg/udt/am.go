package udt

// CallbackFlag marks whether an active-message callback may run from async
// (timer/interrupt) context or requires synchronous (progress-thread)
// delivery.
type CallbackFlag int

const (
	// CBAsync callbacks may be invoked directly from async context.
	CBAsync CallbackFlag = iota
	// CBSync callbacks must be invoked from sync (progress()) context; if
	// detected in async context, delivery is deferred via sync_am_events.
	CBSync
)

// Callback is a receiver-registered handler keyed by am_id. Returning a
// non-nil error means the caller retains ownership of the receive
// descriptor (spec: "callback return non-OK ... not an error"); the caller
// must eventually call Interface.ReleaseAMDesc on it.
type Callback func(rd *RecvDescriptor) error

type amEntry struct {
	cb   Callback
	flag CallbackFlag
}

// SetAMHandler registers cb for amID with the given delivery-context
// requirement.
func (ifc *Interface) SetAMHandler(amID uint8, flag CallbackFlag, cb Callback) {
	ifc.amHandlersMu.Lock()
	defer ifc.amHandlersMu.Unlock()
	ifc.amHandlers[amID] = amEntry{cb: cb, flag: flag}
}

func (ifc *Interface) requiresSync(amID uint8) bool {
	ifc.amHandlersMu.Lock()
	defer ifc.amHandlersMu.Unlock()
	e, ok := ifc.amHandlers[amID]
	return ok && e.flag == CBSync
}

// attemptAM invokes the registered callback for d's received header,
// building the user-facing RecvDescriptor trailer first.
func (ifc *Interface) attemptAM(d *desc) error {
	ifc.amHandlersMu.Lock()
	e, ok := ifc.amHandlers[d.RecvHeader.AMID]
	ifc.amHandlersMu.Unlock()
	if !ok {
		return nil
	}
	return e.cb(d.userDescriptor())
}

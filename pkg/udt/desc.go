package udt

// descState is the descriptor lifecycle state (spec: "exactly one of
// {unposted, posted, awaiting-sync-dispatch, released-to-user} at any
// time").
type descState int

const (
	descFree descState = iota
	descPosted
	descAwaitingSync
	descReleasedToUser
)

// desc is a descriptor drawn from the free-desc pool: fixed regions for the
// outbound post (SendHeader/SendPayload) and the inbound completion
// (RecvHeader/RecvPayload), plus a user-facing trailer handed to the
// callback, which a callback that declines ownership keeps.
//
// RecvDescriptor carries an explicit owner back-reference so
// Interface.ReleaseAMDesc can recover the owning descriptor without pointer
// arithmetic.
type desc struct {
	state descState

	// headroom is Config.RxHeadroom at the time this descriptor's backing
	// memory was allocated: the first headroom bytes of RecvPayload are
	// reserved for upper-layer framing a provider writes ahead of the
	// application payload, and userDescriptor skips them.
	headroom int

	SendHeader  Header
	SendPayload []byte

	RecvHeader  Header
	RecvPayload []byte

	trailer RecvDescriptor
}

// RecvDescriptor is what an active-message callback receives, and what a
// caller that declined ownership (returned non-OK) later passes back to
// Interface.ReleaseAMDesc.
type RecvDescriptor struct {
	AMID    uint8
	Payload []byte

	owner *desc
}

func (d *desc) reset() {
	d.state = descFree
	d.SendHeader = Header{}
	d.RecvHeader = Header{}
	d.trailer = RecvDescriptor{}
}

// userDescriptor builds the trailer handed to a callback, wired back to d
// so ReleaseAMDesc can recover d without pointer arithmetic.
func (d *desc) userDescriptor() *RecvDescriptor {
	d.trailer.AMID = d.RecvHeader.AMID
	d.trailer.Payload = d.RecvPayload[d.headroom:][:d.RecvHeader.Length]
	d.trailer.owner = d
	return &d.trailer
}

package registry

// Channel is the wrapped-module side of the handshake. Bridging code holds a
// Channel bound to the process manager's registry; a Channel with no target
// fails every call with ErrUnknownTarget.
type Channel struct {
	target *Registry
}

// NewChannel binds a channel to target, which may be nil.
func NewChannel(target *Registry) Channel {
	return Channel{target: target}
}

// Register publishes the calling module's heap handle.
func (c Channel) Register(id ModuleID, h Handle) error {
	if c.target == nil {
		return protocolErr(OpRegister, id, ErrUnknownTarget)
	}
	return c.target.Register(id, h)
}

// SignalReady announces that the calling module's runtime is initialised.
func (c Channel) SignalReady(id ModuleID) error {
	if c.target == nil {
		return protocolErr(OpReady, id, ErrUnknownTarget)
	}
	return c.target.SignalReady(id)
}

package hostfuncs

import (
	"context"
	"strings"
)

// HostContext wraps the context a capability is invoked with. It carries the
// qualified name the capability was bound under, which middleware and error
// reporting read back through CapabilityName.
type HostContext interface {
	context.Context

	// Capability returns the qualified name being invoked, e.g. "codec::json::encode".
	Capability() string

	// Module returns the first segment of the qualified name.
	Module() string
}

type hostContext struct {
	context.Context
	capability string
}

// NewHostContext creates a HostContext for one capability invocation.
func NewHostContext(ctx context.Context, capability string) HostContext {
	return &hostContext{
		Context:    ctx,
		capability: capability,
	}
}

func (c *hostContext) Capability() string {
	return c.capability
}

func (c *hostContext) Module() string {
	mod, _, _ := strings.Cut(c.capability, "::")
	return mod
}

// CapabilityName returns the qualified capability name carried by ctx, or
// "unknown" when ctx is not a HostContext.
func CapabilityName(ctx context.Context) string {
	if hc, ok := ctx.(HostContext); ok {
		return hc.Capability()
	}
	return "unknown"
}

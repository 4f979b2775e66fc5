package entities

// SurfaceEntry describes one bound capability as scripts see it.
type SurfaceEntry struct {
	Operator *OperatorSpec `json:"operator,omitempty" yaml:"operator,omitempty"`

	// Path is the fully qualified name, e.g. "codec::json::encode".
	Path string `json:"path" yaml:"path"`

	// Module is the owning capability module.
	Module string `json:"module" yaml:"module"`

	Kind       CapabilityKind `json:"kind" yaml:"kind"`
	Visibility Visibility     `json:"visibility" yaml:"visibility"`

	// Target is the host type for properties and aliases.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Arity is -1 for variadic functions.
	Arity int `json:"arity" yaml:"arity"`
}

// Surface is the full registered capability surface of a host.
type Surface struct {
	Entries []SurfaceEntry `json:"entries" yaml:"entries"`
	Modules []string       `json:"modules" yaml:"modules"`
}

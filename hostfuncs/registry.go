package hostfuncs

import (
	"context"
	"slices"
	"strings"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/domain/ports"
)

// Registry is an immutable, compiled capability surface. Once created via
// NewRegistry nothing can be added or removed, so one registry may be bound
// into any number of runtimes.
type Registry struct {
	bindings []binding
	modules  []string
}

var _ ports.CapabilitySource = (*Registry)(nil)

// binding is one entry ready to be installed into a Binder.
type binding struct {
	value entities.Value
	fn    entities.NativeFunc
	path  []string
	entry entities.SurfaceEntry
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	features   map[string]bool
	modes      map[string]Mode
	modules    []Module
	middleware []Middleware
	errors     []error
}

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*registryBuilder)

// WithModule adds capability modules. Module names must be unique.
func WithModule(mods ...Module) RegistryOption {
	return func(b *registryBuilder) {
		b.modules = append(b.modules, mods...)
	}
}

// WithMiddleware wraps every bound function, property getter and operator.
// Middleware executes in FIFO order (first added wraps outermost).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// WithFeatures enables feature gates. Modules and groups whose Feature is
// not enabled are left out of the surface entirely.
func WithFeatures(features ...string) RegistryOption {
	return func(b *registryBuilder) {
		for _, f := range features {
			if f == "" {
				b.errors = append(b.errors, domainerrors.NewConfigError("features", "feature name cannot be empty"))
				continue
			}
			b.features[f] = true
		}
	}
}

// WithModeOverride registers the named top-level module with mode instead of
// the mode it declares.
func WithModeOverride(module string, mode Mode) RegistryOption {
	return func(b *registryBuilder) {
		b.modes[module] = mode
	}
}

// NewRegistry compiles modules into an immutable Registry.
// It fails with a ConfigError when two entries claim the same qualified
// name, a type gets two aliases, a property or operator token is declared
// twice, or a descriptor is malformed.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware(), LoggingMiddleware(logger)),
//	    WithFeatures("io", "record"),
//	    WithModule(CoreModule(), IOModule(io), RecordModule()),
//	)
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	b := &registryBuilder{
		features: make(map[string]bool),
		modes:    make(map[string]Mode),
	}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	c := &compiler{
		builder:   b,
		paths:     make(map[string]string),
		aliases:   make(map[string]string),
		aliasOf:   make(map[string]string),
		props:     make(map[string]bool),
		operators: make(map[string]bool),
	}
	seen := make(map[string]bool, len(b.modules))
	for _, m := range b.modules {
		if m.Name == "" {
			return nil, domainerrors.NewConfigError("module", "module name cannot be empty")
		}
		if seen[m.Name] {
			return nil, domainerrors.NewConfigError("module "+m.Name, "duplicate module name %q", m.Name)
		}
		seen[m.Name] = true
	}
	for name := range b.modes {
		if !seen[name] {
			return nil, domainerrors.NewConfigError("modes."+name, "mode override for unknown module %q", name)
		}
	}

	for _, m := range b.modules {
		mode := m.Mode
		if override, ok := b.modes[m.Name]; ok {
			mode = override
		}
		if !b.enabled(m.Feature) {
			continue
		}
		c.module = m.Name
		c.compile(m, mode, []string{m.Name})
		if c.err != nil {
			return nil, c.err
		}
		c.enabled = append(c.enabled, m.Name)
	}

	return &Registry{bindings: c.bindings, modules: c.enabled}, nil
}

func (b *registryBuilder) enabled(feature string) bool {
	return feature == "" || b.features[feature]
}

// wrap applies the middleware chain and attaches the HostContext.
func (b *registryBuilder) wrap(name string, fn entities.NativeFunc) entities.NativeFunc {
	wrapped := fn
	// Apply middleware in reverse order so first middleware wraps outermost
	for i := len(b.middleware) - 1; i >= 0; i-- {
		wrapped = b.middleware[i](wrapped)
	}
	return func(ctx context.Context, args []entities.Value) (entities.Value, error) {
		return wrapped(NewHostContext(ctx, name), args)
	}
}

// compiler walks modules and collects bindings, stopping at the first error.
type compiler struct {
	err       error
	builder   *registryBuilder
	paths     map[string]string // qualified name -> owning module
	aliases   map[string]string // host type -> alias
	aliasOf   map[string]string // alias -> host type
	props     map[string]bool
	operators map[string]bool
	module    string
	bindings  []binding
	enabled   []string
}

func (c *compiler) fail(field, format string, args ...any) {
	if c.err == nil {
		c.err = domainerrors.NewConfigError(field, format, args...)
	}
}

func (c *compiler) compile(m Module, mode Mode, prefix []string) {
	for _, d := range m.Entries {
		if !d.Exported {
			continue
		}
		c.entry(d, mode, prefix)
	}
	if mode == ModeGlobal {
		// Flattening the top level never flattens nested groups.
		return
	}
	for _, g := range m.Groups {
		if g.Name == "" {
			c.fail(joinPath(prefix), "group name cannot be empty")
			return
		}
		if !c.builder.enabled(g.Feature) {
			continue
		}
		c.compile(g, mode, append(slices.Clone(prefix), g.Name))
	}
}

func (c *compiler) entry(d entities.Descriptor, mode Mode, prefix []string) {
	if d.Name == "" {
		c.fail(joinPath(prefix), "%s descriptor has no name", d.Kind)
		return
	}
	switch d.Kind {
	case entities.KindFunction, entities.KindConstant:
		if d.Kind == entities.KindFunction && d.Func == nil {
			c.fail(d.Name, "function %s has no implementation", d.Name)
			return
		}
		if mode == ModeGlobal {
			c.bindPath(d, []string{d.Name}, entities.VisibilityGlobal)
			return
		}
		c.bindPath(d, append(slices.Clone(prefix), d.Name), entities.VisibilityNamespaced)
		if d.Global {
			c.bindPath(d, []string{d.Name}, entities.VisibilityGlobal)
		}
	case entities.KindTypeAlias:
		c.bindAlias(d)
	case entities.KindProperty:
		c.bindProperty(d)
	case entities.KindOperator:
		c.bindOperator(d)
	default:
		c.fail(d.Name, "unknown capability kind %q", d.Kind)
	}
}

func (c *compiler) bindPath(d entities.Descriptor, path []string, vis entities.Visibility) {
	key := joinPath(path)
	if owner, ok := c.paths[key]; ok {
		c.fail(key, "capability %s collides with an entry of module %s", key, owner)
		return
	}
	c.paths[key] = c.module

	b := binding{
		path: path,
		entry: entities.SurfaceEntry{
			Path:       key,
			Module:     c.module,
			Kind:       d.Kind,
			Visibility: vis,
			Arity:      d.Arity,
		},
	}
	if d.Kind == entities.KindFunction {
		b.fn = c.builder.wrap(key, d.Func)
	} else {
		b.value = d.Value
		b.entry.Arity = 0
	}
	c.bindings = append(c.bindings, b)
}

func (c *compiler) bindAlias(d entities.Descriptor) {
	if d.Target == "" {
		c.fail(d.Name, "type alias %s has no target type", d.Name)
		return
	}
	if prev, ok := c.aliases[d.Target]; ok {
		c.fail(d.Name, "type %s already has alias %s", d.Target, prev)
		return
	}
	if prev, ok := c.aliasOf[d.Name]; ok {
		c.fail(d.Name, "alias %s already names type %s", d.Name, prev)
		return
	}
	c.aliases[d.Target] = d.Name
	c.aliasOf[d.Name] = d.Target
	c.bindings = append(c.bindings, binding{entry: entities.SurfaceEntry{
		Path:       d.Name,
		Module:     c.module,
		Kind:       d.Kind,
		Visibility: entities.VisibilityGlobal,
		Target:     d.Target,
	}})
}

func (c *compiler) bindProperty(d entities.Descriptor) {
	if d.Target == "" || d.Func == nil {
		c.fail(d.Name, "property %s needs a target type and a getter", d.Name)
		return
	}
	host := d.Target
	if t, ok := c.aliasOf[host]; ok {
		host = t
	}
	key := host + "." + d.Name
	if c.props[key] {
		c.fail(key, "duplicate property %s", key)
		return
	}
	c.props[key] = true
	c.bindings = append(c.bindings, binding{
		fn: c.builder.wrap(d.Target+"."+d.Name, d.Func),
		entry: entities.SurfaceEntry{
			Path:       d.Target + "." + d.Name,
			Module:     c.module,
			Kind:       d.Kind,
			Visibility: entities.VisibilityGlobal,
			Target:     d.Target,
			Arity:      1,
		},
	})
}

func (c *compiler) bindOperator(d entities.Descriptor) {
	tok := d.Operator.Token
	if tok == "" {
		tok = d.Name
	}
	if d.Func == nil {
		c.fail("operator "+tok, "operator %s has no implementation", tok)
		return
	}
	if c.operators[tok] {
		c.fail("operator "+tok, "duplicate operator %s", tok)
		return
	}
	c.operators[tok] = true
	spec := d.Operator
	spec.Token = tok
	c.bindings = append(c.bindings, binding{
		fn: c.builder.wrap("operator "+tok, d.Func),
		entry: entities.SurfaceEntry{
			Path:       tok,
			Module:     c.module,
			Kind:       d.Kind,
			Visibility: entities.VisibilityGlobal,
			Operator:   &spec,
			Arity:      2,
		},
	})
}

// Bind installs the registry into a runtime. Type aliases go first so that
// properties may name their target by alias.
func (r *Registry) Bind(b ports.Binder) error {
	for _, bd := range r.bindings {
		if bd.entry.Kind != entities.KindTypeAlias {
			continue
		}
		if err := b.BindTypeAlias(bd.entry.Target, bd.entry.Path); err != nil {
			return err
		}
	}
	for _, bd := range r.bindings {
		var err error
		switch bd.entry.Kind {
		case entities.KindFunction:
			err = b.BindFunction(bd.path, bd.fn, bd.entry.Arity)
		case entities.KindConstant:
			err = b.BindConstant(bd.path, bd.value)
		case entities.KindProperty:
			name := bd.entry.Path[strings.LastIndexByte(bd.entry.Path, '.')+1:]
			err = b.BindProperty(bd.entry.Target, name, bd.fn)
		case entities.KindOperator:
			err = b.BindOperator(*bd.entry.Operator, bd.fn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Surface returns the registered capability surface, in registration order.
func (r *Registry) Surface() entities.Surface {
	s := entities.Surface{
		Entries: make([]entities.SurfaceEntry, len(r.bindings)),
		Modules: slices.Clone(r.modules),
	}
	for i, bd := range r.bindings {
		s.Entries[i] = bd.entry
	}
	return s
}

// Has reports whether a function or constant is bound at the qualified name.
func (r *Registry) Has(path string) bool {
	for _, bd := range r.bindings {
		if bd.path != nil && bd.entry.Path == path {
			return true
		}
	}
	return false
}

// Modules returns the names of the registered (feature-enabled) modules.
func (r *Registry) Modules() []string {
	return slices.Clone(r.modules)
}

func joinPath(path []string) string {
	return strings.Join(path, "::")
}

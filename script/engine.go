// Package script implements the embedded scripting language: a lexer, a
// precedence-climbing parser and a tree-walking evaluator over
// entities.Value.
//
// Host capabilities reach scripts only through the Binder methods of an
// Engine. Capability sources are installed once when the engine is built;
// after that the resolution namespace is read-only and the engine may run
// any number of scripts.
package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/domain/ports"
)

// DefaultMaxCallDepth bounds script function recursion.
const DefaultMaxCallDepth = 256

// nativeFunc is a bound host function.
type nativeFunc struct {
	fn    entities.NativeFunc
	name  string
	arity int
}

// boundOperator is a registered custom infix operator.
type boundOperator struct {
	fn   entities.NativeFunc
	spec entities.OperatorSpec
}

// Engine is a configured script runtime.
type Engine struct {
	logger    *slog.Logger
	printFn   func(string)
	debugFn   func(string)
	funcs     map[string]*nativeFunc
	consts    map[string]entities.Value
	aliases   map[string]string // host type -> alias
	aliasOf   map[string]string // alias -> host type
	props     map[string]map[string]entities.NativeFunc
	operators map[string]boundOperator
	maxDepth  int
}

var (
	_ ports.Binder        = (*Engine)(nil)
	_ ports.ScriptRuntime = (*Engine)(nil)
)

// engineBuilder accumulates configuration during engine construction.
type engineBuilder struct {
	logger   *slog.Logger
	printFn  func(string)
	debugFn  func(string)
	sources  []ports.CapabilitySource
	maxDepth int
}

// Option configures an Engine.
type Option func(*engineBuilder)

// WithCapabilities installs capability sources in order. A collision between
// sources fails New with a ConfigError.
func WithCapabilities(sources ...ports.CapabilitySource) Option {
	return func(b *engineBuilder) {
		b.sources = append(b.sources, sources...)
	}
}

// WithLogger sets the logger used for run diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *engineBuilder) {
		b.logger = logger
	}
}

// WithMaxCallDepth bounds script function recursion.
func WithMaxCallDepth(depth int) Option {
	return func(b *engineBuilder) {
		b.maxDepth = depth
	}
}

// WithPrintHandler receives the output of print().
func WithPrintHandler(fn func(string)) Option {
	return func(b *engineBuilder) {
		b.printFn = fn
	}
}

// WithDebugHandler receives the output of debug().
func WithDebugHandler(fn func(string)) Option {
	return func(b *engineBuilder) {
		b.debugFn = fn
	}
}

// WithOutput routes print() to out and debug() to out as well.
func WithOutput(out io.Writer) Option {
	return func(b *engineBuilder) {
		b.printFn = func(s string) { fmt.Fprintln(out, s) }
		b.debugFn = b.printFn
	}
}

// New creates an engine and installs the given capability sources.
func New(opts ...Option) (*Engine, error) {
	b := &engineBuilder{
		logger:   slog.Default(),
		maxDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxDepth <= 0 {
		return nil, domainerrors.NewConfigError("max_call_depth", "must be positive, got %d", b.maxDepth)
	}
	if b.printFn == nil {
		b.printFn = func(s string) { fmt.Fprintln(os.Stdout, s) }
	}
	if b.debugFn == nil {
		b.debugFn = func(s string) { fmt.Fprintln(os.Stderr, s) }
	}

	e := &Engine{
		logger:    b.logger,
		printFn:   b.printFn,
		debugFn:   b.debugFn,
		funcs:     make(map[string]*nativeFunc),
		consts:    make(map[string]entities.Value),
		aliases:   make(map[string]string),
		aliasOf:   make(map[string]string),
		props:     make(map[string]map[string]entities.NativeFunc),
		operators: make(map[string]boundOperator),
		maxDepth:  b.maxDepth,
	}
	for _, src := range b.sources {
		if err := src.Bind(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Run parses and evaluates src in a fresh global scope and returns the value
// of its final expression statement.
func (e *Engine) Run(ctx context.Context, name, src string) (entities.Value, error) {
	start := time.Now()
	v, err := e.NewSession(name).Eval(ctx, src)
	if err != nil {
		e.logger.DebugContext(ctx, "script failed", "script", name, "duration", time.Since(start), "error", err)
		return entities.Null, err
	}
	e.logger.DebugContext(ctx, "script finished", "script", name, "duration", time.Since(start))
	return v, nil
}

// Operators returns every infix operator the parser knows, built-in and
// custom, ordered by precedence then token.
func (e *Engine) Operators() []entities.OperatorSpec {
	out := make([]entities.OperatorSpec, 0, len(builtinOperators)+len(e.operators))
	for _, spec := range builtinOperators {
		out = append(out, spec)
	}
	for _, op := range e.operators {
		out = append(out, op.spec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Precedence != out[j].Precedence {
			return out[i].Precedence < out[j].Precedence
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// Functions returns the qualified names of all bound functions, sorted.
func (e *Engine) Functions() []string {
	names := make([]string, 0, len(e.funcs))
	for name := range e.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// customOperators returns the custom operator table handed to the parser.
func (e *Engine) customOperators() map[string]entities.OperatorSpec {
	out := make(map[string]entities.OperatorSpec, len(e.operators))
	for tok, op := range e.operators {
		out[tok] = op.spec
	}
	return out
}

// displayType returns the script-facing type name of v, honoring aliases.
func (e *Engine) displayType(v entities.Value) string {
	name := v.TypeName()
	if v.Kind == entities.KindObject {
		if alias, ok := e.aliases[name]; ok {
			return alias
		}
	}
	return name
}

// ---------------------------------------------------------------------------
// Binder
// ---------------------------------------------------------------------------

func joinPath(path []string) string {
	return strings.Join(path, "::")
}

func validPath(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("empty path")
	}
	for _, part := range path {
		if part == "" || !isIdentStart(part[0]) {
			return fmt.Errorf("invalid name segment %q", part)
		}
		for i := 1; i < len(part); i++ {
			if !isIdentPart(part[i]) {
				return fmt.Errorf("invalid name segment %q", part)
			}
		}
		if keywords[part] {
			return fmt.Errorf("%q is a reserved word", part)
		}
	}
	return nil
}

func (e *Engine) claimPath(path []string) (string, error) {
	key := joinPath(path)
	if err := validPath(path); err != nil {
		return key, &domainerrors.ConfigError{Field: key, Err: err}
	}
	if _, ok := e.funcs[key]; ok {
		return key, domainerrors.NewConfigError(key, "duplicate capability name %q", key)
	}
	if _, ok := e.consts[key]; ok {
		return key, domainerrors.NewConfigError(key, "duplicate capability name %q", key)
	}
	return key, nil
}

// BindFunction implements ports.Binder.
func (e *Engine) BindFunction(path []string, fn entities.NativeFunc, arity int) error {
	key, err := e.claimPath(path)
	if err != nil {
		return err
	}
	if fn == nil {
		return domainerrors.NewConfigError(key, "function has no implementation")
	}
	if arity < entities.Variadic {
		return domainerrors.NewConfigError(key, "invalid arity %d", arity)
	}
	e.funcs[key] = &nativeFunc{fn: fn, name: key, arity: arity}
	return nil
}

// BindConstant implements ports.Binder.
func (e *Engine) BindConstant(path []string, v entities.Value) error {
	key, err := e.claimPath(path)
	if err != nil {
		return err
	}
	e.consts[key] = v
	return nil
}

// BindTypeAlias implements ports.Binder.
func (e *Engine) BindTypeAlias(hostType, alias string) error {
	if err := validPath([]string{alias}); err != nil {
		return &domainerrors.ConfigError{Field: alias, Err: err}
	}
	if prev, ok := e.aliases[hostType]; ok {
		return domainerrors.NewConfigError(alias, "type %s already has alias %s", hostType, prev)
	}
	if prev, ok := e.aliasOf[alias]; ok {
		return domainerrors.NewConfigError(alias, "alias %s already names type %s", alias, prev)
	}
	e.aliases[hostType] = alias
	e.aliasOf[alias] = hostType
	return nil
}

// BindProperty implements ports.Binder. hostType may be the host name or a
// previously bound alias.
func (e *Engine) BindProperty(hostType, name string, getter entities.NativeFunc) error {
	if host, ok := e.aliasOf[hostType]; ok {
		hostType = host
	}
	field := hostType + "." + name
	if err := validPath([]string{name}); err != nil {
		return &domainerrors.ConfigError{Field: field, Err: err}
	}
	if getter == nil {
		return domainerrors.NewConfigError(field, "property has no getter")
	}
	byName, ok := e.props[hostType]
	if !ok {
		byName = make(map[string]entities.NativeFunc)
		e.props[hostType] = byName
	}
	if _, ok := byName[name]; ok {
		return domainerrors.NewConfigError(field, "duplicate property %s", field)
	}
	byName[name] = getter
	return nil
}

// BindOperator implements ports.Binder.
func (e *Engine) BindOperator(spec entities.OperatorSpec, fn entities.NativeFunc) error {
	tok := spec.Token
	if err := e.checkOperator(spec); err != nil {
		return &domainerrors.ConfigError{Field: "operator " + tok, Err: err}
	}
	if fn == nil {
		return domainerrors.NewConfigError("operator "+tok, "operator has no implementation")
	}
	e.operators[tok] = boundOperator{spec: spec, fn: fn}
	return nil
}

func (e *Engine) checkOperator(spec entities.OperatorSpec) error {
	tok := spec.Token
	if tok == "" {
		return fmt.Errorf("empty operator token")
	}
	for _, c := range tok {
		if !strings.ContainsRune(operatorChars, c) {
			return fmt.Errorf("operator token %q may only contain %s", tok, operatorChars)
		}
	}
	if strings.HasPrefix(tok, "//") || strings.HasPrefix(tok, "/*") {
		return fmt.Errorf("operator token %q would start a comment", tok)
	}
	for _, p := range punctuation {
		if p == tok {
			return fmt.Errorf("operator token %q collides with a built-in operator", tok)
		}
	}
	if _, ok := e.operators[tok]; ok {
		return fmt.Errorf("operator token %q is already bound", tok)
	}
	if spec.Precedence < entities.MinCustomPrecedence || spec.Precedence > entities.MaxCustomPrecedence {
		return fmt.Errorf("precedence %d outside [%d, %d]",
			spec.Precedence, entities.MinCustomPrecedence, entities.MaxCustomPrecedence)
	}
	switch spec.Assoc {
	case entities.AssocLeft, entities.AssocRight:
	default:
		return fmt.Errorf("associativity must be %q or %q, got %q", entities.AssocLeft, entities.AssocRight, spec.Assoc)
	}
	for _, other := range e.Operators() {
		if other.Precedence == spec.Precedence && other.Assoc != spec.Assoc {
			return fmt.Errorf("precedence %d is already used by %s with %s associativity",
				spec.Precedence, other.Token, other.Assoc)
		}
	}
	return nil
}

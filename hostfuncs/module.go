package hostfuncs

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// Mode selects how a module's entries are reached from scripts.
type Mode int

const (
	// ModeGlobal merges every exported entry into the top level. Nested
	// groups of a global module are never promoted and stay unreachable.
	ModeGlobal Mode = iota

	// ModeNamespaced binds entries under the module name, e.g. codec::to_json,
	// and nested groups under module::group::name.
	ModeNamespaced
)

func (m Mode) String() string {
	switch m {
	case ModeGlobal:
		return "global"
	case ModeNamespaced:
		return "namespaced"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "global" or "namespaced".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global":
		return ModeGlobal, nil
	case "namespaced":
		return ModeNamespaced, nil
	}
	return ModeGlobal, fmt.Errorf("unknown module mode %q", s)
}

// Module is a named group of capability descriptors. Groups nest; a group's
// own Mode is ignored and its parent's applies.
type Module struct {
	// Name is the qualifier for namespaced registration.
	Name string

	// Feature, when set, gates the module or group: it is only registered
	// if the feature is enabled on the registry.
	Feature string

	Entries []entities.Descriptor
	Groups  []Module
	Mode    Mode
}

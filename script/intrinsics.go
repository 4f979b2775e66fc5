package script

import (
	"strings"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// intrinsic is a function built into the engine. Script functions and bound
// capabilities of the same name shadow it.
type intrinsic struct {
	fn    func(it *interp, args []entities.Value) entities.Value
	arity int
}

var intrinsics = map[string]intrinsic{
	"print": {arity: entities.Variadic, fn: func(it *interp, args []entities.Value) entities.Value {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		it.eng.printFn(strings.Join(parts, " "))
		return entities.Null
	}},
	"debug": {arity: 1, fn: func(it *interp, args []entities.Value) entities.Value {
		it.eng.debugFn(args[0].Debug())
		return entities.Null
	}},
	"type_of": {arity: 1, fn: func(it *interp, args []entities.Value) entities.Value {
		return entities.Str(it.eng.displayType(args[0]))
	}},
}

// Intrinsics returns the names of the engine's built-in functions.
func Intrinsics() []string {
	return []string{"debug", "print", "type_of"}
}

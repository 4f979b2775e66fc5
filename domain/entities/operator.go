package entities

import "fmt"

// Associativity decides how a chain of operators at one precedence groups.
type Associativity string

const (
	AssocLeft  Associativity = "left"
	AssocRight Associativity = "right"
)

// Precedence tiers of the built-in binary operators. Higher binds tighter.
// Custom operators may use any level in [MinCustomPrecedence, MaxCustomPrecedence].
const (
	PrecedenceOr             = 30
	PrecedenceAnd            = 60
	PrecedenceEquality       = 90
	PrecedenceComparison     = 110
	PrecedenceAdditive       = 150
	PrecedenceMultiplicative = 180
	PrecedencePower          = 190

	MinCustomPrecedence = 1
	MaxCustomPrecedence = 199
)

// OperatorSpec describes an infix operator token.
type OperatorSpec struct {
	Token      string        `json:"token"`
	Assoc      Associativity `json:"assoc"`
	Precedence int           `json:"precedence"`
}

func (s OperatorSpec) String() string {
	return fmt.Sprintf("%s (precedence %d, %s)", s.Token, s.Precedence, s.Assoc)
}

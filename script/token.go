package script

import "fmt"

// TokenType represents the kind of token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenInt
	TokenFloat
	TokenString
	TokenPunct   // built-in punctuation and operators
	TokenCustom  // operator registered by a capability module
	TokenKeyword // reserved word
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenInt:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenString:
		return "string"
	case TokenPunct:
		return "punctuation"
	case TokenCustom:
		return "operator"
	case TokenKeyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is a lexical token. Text holds the lexeme, or the decoded content for
// string literals.
type Token struct {
	Text string
	Pos  Pos
	Type TokenType
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return fmt.Sprintf("string %q", t.Text)
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// is reports whether t is the punctuation or keyword s.
func (t Token) is(s string) bool {
	return (t.Type == TokenPunct || t.Type == TokenKeyword) && t.Text == s
}

var keywords = map[string]bool{
	"let":      true,
	"const":    true,
	"fn":       true,
	"if":       true,
	"else":     true,
	"while":    true,
	"loop":     true,
	"for":      true,
	"in":       true,
	"break":    true,
	"continue": true,
	"return":   true,
	"throw":    true,
	"try":      true,
	"catch":    true,
	"true":     true,
	"false":    true,
	"null":     true,
}

// punctuation lists every built-in symbol token.
var punctuation = []string{
	"(", ")", "[", "]", "{", "}", "#{",
	",", ";", ".", ":", "::",
	"=", "+=", "-=", "*=", "/=", "%=",
	"==", "!=", "<", "<=", ">", ">=",
	"+", "-", "*", "/", "%", "**",
	"!", "&&", "||",
}

// operatorChars are the characters a custom operator token may be built from.
const operatorChars = "!#$%&*+-./:<=>?@^|~"

// IsKeyword reports whether name is reserved by the language.
func IsKeyword(name string) bool {
	return keywords[name]
}

package script

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// symbolTable maps every symbol lexeme the lexer recognizes to its token type.
type symbolTable struct {
	types  map[string]TokenType
	maxLen int
}

func newSymbolTable(custom []string) *symbolTable {
	st := &symbolTable{types: make(map[string]TokenType, len(punctuation)+len(custom))}
	for _, p := range punctuation {
		st.add(p, TokenPunct)
	}
	for _, c := range custom {
		st.add(c, TokenCustom)
	}
	return st
}

func (st *symbolTable) add(s string, t TokenType) {
	st.types[s] = t
	if len(s) > st.maxLen {
		st.maxLen = len(s)
	}
}

// match returns the longest symbol at the start of s.
func (st *symbolTable) match(s string) (string, TokenType, bool) {
	n := min(st.maxLen, len(s))
	for ; n > 0; n-- {
		if t, ok := st.types[s[:n]]; ok {
			return s[:n], t, true
		}
	}
	return "", 0, false
}

// Lexer splits script source into tokens.
type Lexer struct {
	symbols *symbolTable
	src     string
	pos     int
	line    int
	col     int
}

// NewLexer creates a lexer over src that also recognizes the given custom
// operator tokens.
func NewLexer(src string, customOps []string) *Lexer {
	return &Lexer{
		symbols: newSymbolTable(customOps),
		src:     src,
		line:    1,
		col:     1,
	}
}

// Tokenize returns all tokens of the source, ending with TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

// SyntaxError is a lexical or grammatical error at a source position.
type SyntaxError struct {
	Msg string
	Pos Pos
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (l *Lexer) errorf(p Pos, format string, args ...any) error {
	return &SyntaxError{Pos: p, Msg: fmt.Sprintf(format, args...)}
}

func (l *Lexer) here() Pos {
	return Pos{Line: l.line, Col: l.col}
}

func (l *Lexer) peekByte(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

// advance consumes n bytes, tracking line and column.
func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else if l.src[l.pos]&0xC0 != 0x80 {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		case c == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		case c == '/' && l.peekByte(1) == '*':
			start := l.here()
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(start, "unterminated block comment")
			}
			l.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}
	start := l.here()
	if l.pos >= len(l.src) {
		return Token{Type: TokenEOF, Pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		return l.lexIdent(start), nil
	case c >= '0' && c <= '9':
		return l.lexNumber(start)
	case c == '"' || c == '\'':
		return l.lexString(start, c)
	}

	if sym, typ, ok := l.symbols.match(l.src[l.pos:]); ok {
		l.advance(len(sym))
		return Token{Type: typ, Text: sym, Pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return Token{}, l.errorf(start, "unexpected character %q", r)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *Lexer) lexIdent(start Pos) Token {
	end := l.pos
	for end < len(l.src) && isIdentPart(l.src[end]) {
		end++
	}
	text := l.src[l.pos:end]
	l.advance(end - l.pos)
	if keywords[text] {
		return Token{Type: TokenKeyword, Text: text, Pos: start}
	}
	return Token{Type: TokenIdent, Text: text, Pos: start}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *Lexer) lexNumber(start Pos) (Token, error) {
	s := l.src
	i := l.pos

	if s[i] == '0' && i+1 < len(s) && (s[i+1] == 'x' || s[i+1] == 'X') {
		j := i + 2
		for j < len(s) && (isHexDigit(s[j]) || s[j] == '_') {
			j++
		}
		text := s[i:j]
		n, err := strconv.ParseInt(strings.ReplaceAll(text[2:], "_", ""), 16, 64)
		if err != nil {
			return Token{}, l.errorf(start, "invalid integer literal %s", text)
		}
		l.advance(j - i)
		return Token{Type: TokenInt, Text: strconv.FormatInt(n, 10), Pos: start}, nil
	}

	j := i
	for j < len(s) && (isDigit(s[j]) || s[j] == '_') {
		j++
	}
	isFloat := false
	// A dot starts a fraction only when a digit follows, so 1.to_string() is a method call.
	if j+1 < len(s) && s[j] == '.' && isDigit(s[j+1]) {
		isFloat = true
		j++
		for j < len(s) && (isDigit(s[j]) || s[j] == '_') {
			j++
		}
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		if k < len(s) && isDigit(s[k]) {
			isFloat = true
			j = k
			for j < len(s) && isDigit(s[j]) {
				j++
			}
		}
	}

	text := strings.ReplaceAll(s[i:j], "_", "")
	l.advance(j - i)
	if isFloat {
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return Token{}, l.errorf(start, "invalid float literal %s", text)
		}
		return Token{Type: TokenFloat, Text: text, Pos: start}, nil
	}
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return Token{}, l.errorf(start, "integer literal %s out of range", text)
	}
	return Token{Type: TokenInt, Text: text, Pos: start}, nil
}

func (l *Lexer) lexString(start Pos, quote byte) (Token, error) {
	l.advance(1)
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errorf(start, "unterminated string literal")
		}
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.advance(1)
			return Token{Type: TokenString, Text: sb.String(), Pos: start}, nil
		case c == '\n':
			return Token{}, l.errorf(start, "unterminated string literal")
		case c == '\\':
			r, n, err := l.lexEscape()
			if err != nil {
				return Token{}, err
			}
			sb.WriteRune(r)
			l.advance(n)
		default:
			_, size := utf8.DecodeRuneInString(l.src[l.pos:])
			sb.WriteString(l.src[l.pos : l.pos+size])
			l.advance(size)
		}
	}
}

// lexEscape decodes the escape sequence at the current position and returns
// the rune and the number of bytes it spans.
func (l *Lexer) lexEscape() (rune, int, error) {
	p := l.here()
	switch l.peekByte(1) {
	case 'n':
		return '\n', 2, nil
	case 't':
		return '\t', 2, nil
	case 'r':
		return '\r', 2, nil
	case '0':
		return 0, 2, nil
	case '\\':
		return '\\', 2, nil
	case '"':
		return '"', 2, nil
	case '\'':
		return '\'', 2, nil
	case 'u':
		rest := l.src[l.pos+2:]
		if !strings.HasPrefix(rest, "{") {
			return 0, 0, l.errorf(p, `expected \u{...} escape`)
		}
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return 0, 0, l.errorf(p, "unterminated unicode escape")
		}
		n, err := strconv.ParseUint(rest[1:end], 16, 32)
		if err != nil || n > unicode.MaxRune {
			return 0, 0, l.errorf(p, "invalid unicode escape %s", rest[:end+1])
		}
		return rune(n), end + 3, nil
	default:
		return 0, 0, l.errorf(p, "unknown escape sequence")
	}
}

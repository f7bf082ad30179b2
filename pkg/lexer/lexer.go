// Package lexer implements the VisionScript tokenizer.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokTrue TokenType = iota
	TokFalse

	// Literals
	TokIntLit
	TokFloatLit
	TokStringLit

	// Identifiers
	TokIdent

	// Punctuation
	TokLBracket // [
	TokRBracket // ]
	TokComma    // ,
	TokEquals   // =
	TokEqEq     // ==

	// Layout
	TokComment
	TokNewline

	// Special
	TokEOF
)

// TabWidth is the indentation width a tab counts for.
const TabWidth = 4

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
	// Indent is the leading whitespace width of the line the token is on.
	Indent int
}

var keywords = map[string]TokenType{
	"True":  TokTrue,
	"False": TokFalse,
}

type scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int
	indent   int
	lineHas  bool // a token has been emitted on the current line
}

func newScanner(source, filename string) *scanner {
	return &scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *scanner) peekAt(offset int) byte {
	p := s.pos + offset
	if p >= len(s.source) {
		return 0
	}
	return s.source[p]
}

func (s *scanner) advance() byte {
	ch := s.source[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *scanner) span(startLine, startCol int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
	}
}

func (s *scanner) token(typ TokenType, value string, startLine, startCol int) Token {
	s.lineHas = true
	return Token{Type: typ, Value: value, Span: s.span(startLine, startCol), Indent: s.indent}
}

// measureIndent consumes the leading whitespace of a line.
func (s *scanner) measureIndent() {
	width := 0
	for !s.atEnd() {
		switch s.peek() {
		case ' ':
			width++
		case '\t':
			width += TabWidth
		default:
			s.indent = width
			return
		}
		s.advance()
	}
	s.indent = width
}

func (s *scanner) skipInlineSpace() {
	for !s.atEnd() {
		ch := s.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' {
			s.advance()
		} else {
			break
		}
	}
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlphaNumeric(ch byte) bool {
	return isAlpha(ch) || isDigit(ch)
}

func (s *scanner) scanString(quote byte) (Token, error) {
	startLine, startCol := s.line, s.col
	s.advance() // consume opening quote

	var buf strings.Builder
	for !s.atEnd() {
		ch := s.peek()
		if ch == quote {
			s.advance()
			return s.token(TokStringLit, buf.String(), startLine, startCol), nil
		}
		if ch == '\\' {
			s.advance()
			if s.atEnd() {
				return Token{}, s.lexError(startLine, startCol, `\`, "unterminated string escape")
			}
			esc := s.advance()
			switch esc {
			case '"', '\'', '\\':
				buf.WriteByte(esc)
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			default:
				// Paths on Windows use backslashes; keep them verbatim.
				buf.WriteByte('\\')
				buf.WriteByte(esc)
			}
		} else if ch == '\n' {
			return Token{}, s.lexError(startLine, startCol, string(quote), "unterminated string literal")
		} else {
			r, size := utf8.DecodeRuneInString(s.source[s.pos:])
			if r == utf8.RuneError && size == 1 {
				return Token{}, s.lexError(s.line, s.col, string(ch), "invalid UTF-8 character in string")
			}
			buf.WriteRune(r)
			for i := 0; i < size; i++ {
				s.advance()
			}
		}
	}
	return Token{}, s.lexError(startLine, startCol, string(quote), "unterminated string literal")
}

func (s *scanner) scanNumber() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos
	isFloat := false

	if s.peek() == '-' {
		s.advance()
	}
	for !s.atEnd() && isDigit(s.peek()) {
		s.advance()
	}
	if !s.atEnd() && s.peek() == '.' && isDigit(s.peekAt(1)) {
		isFloat = true
		s.advance()
		for !s.atEnd() && isDigit(s.peek()) {
			s.advance()
		}
	}

	tokType := TokIntLit
	if isFloat {
		tokType = TokFloatLit
	}
	return s.token(tokType, s.source[startPos:s.pos], startLine, startCol)
}

func (s *scanner) scanIdentOrKeyword() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() && isAlphaNumeric(s.peek()) {
		s.advance()
	}

	text := s.source[startPos:s.pos]
	if tokType, ok := keywords[text]; ok {
		return s.token(tokType, text, startLine, startCol)
	}
	return s.token(TokIdent, text, startLine, startCol)
}

func (s *scanner) scanComment() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos
	for !s.atEnd() && s.peek() != '\n' {
		s.advance()
	}
	return s.token(TokComment, strings.TrimRight(s.source[startPos:s.pos], " \t\r"), startLine, startCol)
}

func (s *scanner) lexError(line, col int, char string, msg string) error {
	diag := diagnostics.MakeDiag(
		diagnostics.ELex,
		msg,
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)
	return &LexError{Diag: diag, Char: char}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
	// Char is the character the scanner could not accept.
	Char string
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

func (s *scanner) nextToken() (Token, error) {
	for {
		if s.col == 1 {
			s.measureIndent()
		}
		s.skipInlineSpace()
		if s.atEnd() {
			break
		}
		if s.peek() != '\n' {
			break
		}
		startLine, startCol := s.line, s.col
		had := s.lineHas
		s.advance()
		s.lineHas = false
		if had {
			return Token{Type: TokNewline, Value: "\n", Span: s.span(startLine, startCol), Indent: s.indent}, nil
		}
	}

	if s.atEnd() {
		return Token{
			Type:  TokEOF,
			Value: "",
			Span:  s.span(s.line, s.col),
		}, nil
	}

	ch := s.peek()
	startLine, startCol := s.line, s.col

	switch ch {
	case '[':
		s.advance()
		return s.token(TokLBracket, "[", startLine, startCol), nil
	case ']':
		s.advance()
		return s.token(TokRBracket, "]", startLine, startCol), nil
	case ',':
		s.advance()
		return s.token(TokComma, ",", startLine, startCol), nil
	case '#':
		return s.scanComment(), nil
	case '=':
		s.advance()
		if !s.atEnd() && s.peek() == '=' {
			s.advance()
			return s.token(TokEqEq, "==", startLine, startCol), nil
		}
		return s.token(TokEquals, "=", startLine, startCol), nil
	}

	if isDigit(ch) || (ch == '-' && isDigit(s.peekAt(1))) {
		return s.scanNumber(), nil
	}
	if ch == '"' || ch == '\'' {
		return s.scanString(ch)
	}
	if isAlpha(ch) {
		return s.scanIdentOrKeyword(), nil
	}

	r, _ := utf8.DecodeRuneInString(s.source[s.pos:])
	s.advance()
	return Token{}, s.lexError(startLine, startCol, string(r), fmt.Sprintf("unexpected character %s", strconv.QuoteRune(r)))
}

// Tokenize breaks source code into a slice of tokens. Blank lines produce no
// tokens; every non-blank line ends with a TokNewline (or TokEOF).
func Tokenize(source, filename string) ([]Token, error) {
	s := newScanner(source, filename)
	var tokens []Token

	for {
		tok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			break
		}
	}

	return tokens, nil
}

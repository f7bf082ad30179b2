// Package parser implements the VisionScript parser.
//
// Statements are line oriented. Control constructs (If, In, Make) own the
// indented lines that follow them.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/diagnostics"
	"github.com/visionscript/vscript/pkg/lexer"
	"github.com/visionscript/vscript/pkg/vocab"
)

// ErrorClass distinguishes the two kinds of syntax errors.
type ErrorClass int

const (
	// UnexpectedCharacter means the input at a position could not start any
	// valid construct: an unknown word or an illegal character.
	UnexpectedCharacter ErrorClass = iota
	// UnexpectedToken means a known construct was malformed.
	UnexpectedToken
)

func (c ErrorClass) String() string {
	if c == UnexpectedCharacter {
		return "unexpected character"
	}
	return "unexpected token"
}

// SyntaxError is the structured fault returned by Parse.
type SyntaxError struct {
	Class ErrorClass
	Line  int
	Col   int
	Char  string
	Token string
	Diag  diagnostics.Diagnostic
}

func (e *SyntaxError) Error() string {
	return e.Diag.Message
}

type parser struct {
	tokens []lexer.Token
	pos    int
	err    *SyntaxError
}

// Parse tokenizes source and parses it into a parse tree. On failure the
// returned error is a *SyntaxError describing the first problem found.
func Parse(source, filename string) (*ast.Program, error) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		if le, ok := err.(*lexer.LexError); ok {
			span := le.Diag.Span
			return nil, &SyntaxError{
				Class: UnexpectedCharacter,
				Line:  span.StartLine,
				Col:   span.StartCol,
				Char:  le.Char,
				Diag:  le.Diag,
			}
		}
		return nil, &SyntaxError{
			Class: UnexpectedCharacter,
			Diag:  diagnostics.MakeDiag(diagnostics.ELex, err.Error(), nil, ""),
		}
	}

	p := &parser{tokens: tokens, pos: 0}
	prog := p.parseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

func (p *parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() lexer.TokenType {
	return p.current().Type
}

func (p *parser) peekAt(offset int) lexer.TokenType {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return lexer.TokEOF
	}
	return p.tokens[idx].Type
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.unexpectedToken(tok, fmt.Sprintf("expected %s", tokenName(typ)))
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) unexpectedToken(tok lexer.Token, hint string) {
	if p.err != nil {
		return
	}
	span := tok.Span
	shown := describeToken(tok)
	msg := fmt.Sprintf("Syntax error on line %d, column %d. Unexpected token: %s", span.StartLine, span.StartCol, shown)
	p.err = &SyntaxError{
		Class: UnexpectedToken,
		Line:  span.StartLine,
		Col:   span.StartCol,
		Token: shown,
		Diag:  diagnostics.MakeDiag(diagnostics.ESyntax, msg, &span, hint),
	}
}

func (p *parser) unexpectedWord(tok lexer.Token) {
	if p.err != nil {
		return
	}
	span := tok.Span
	msg := fmt.Sprintf("Syntax error on line %d, column %d. Unexpected character: %s", span.StartLine, span.StartCol, tok.Value[:1])
	p.err = &SyntaxError{
		Class: UnexpectedCharacter,
		Line:  span.StartLine,
		Col:   span.StartCol,
		Char:  tok.Value[:1],
		Diag:  diagnostics.MakeDiag(diagnostics.ESyntax, msg, &span, ""),
	}
}

func (p *parser) spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func tokenName(t lexer.TokenType) string {
	switch t {
	case lexer.TokLBracket:
		return "'['"
	case lexer.TokRBracket:
		return "']'"
	case lexer.TokComma:
		return "','"
	case lexer.TokEquals:
		return "'='"
	case lexer.TokIdent:
		return "identifier"
	case lexer.TokStringLit:
		return "string"
	case lexer.TokIntLit:
		return "integer"
	case lexer.TokNewline:
		return "end of line"
	case lexer.TokEOF:
		return "end of file"
	default:
		return fmt.Sprintf("token(%d)", t)
	}
}

func describeToken(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokNewline:
		return "end of line"
	case lexer.TokEOF:
		return "end of file"
	case lexer.TokStringLit:
		return strconv.Quote(tok.Value)
	}
	return tok.Value
}

// --- Program ---

func (p *parser) parseProgram() *ast.Program {
	startSpan := p.current().Span

	stmts := p.parseStatements(-1)
	if p.err != nil {
		return nil
	}

	end := p.current().Span
	return &ast.Program{
		Span:       p.spanFromTo(startSpan, end),
		Statements: stmts,
	}
}

// parseStatements parses statements whose lines are indented deeper than
// parentIndent.
func (p *parser) parseStatements(parentIndent int) []ast.Node {
	var stmts []ast.Node
	for p.peek() != lexer.TokEOF && p.current().Indent > parentIndent {
		before := p.pos
		parsed := p.parseStatement()
		if p.err != nil {
			return nil
		}
		stmts = append(stmts, parsed...)
		if p.pos == before {
			p.unexpectedToken(p.current(), "")
			return nil
		}
	}
	return stmts
}

// parseStatement parses one line (plus any block it owns). A trailing
// comment on the same line is returned as a second node.
func (p *parser) parseStatement() []ast.Node {
	tok := p.current()

	if tok.Type == lexer.TokComment {
		p.advance()
		p.endOfLine()
		return []ast.Node{&ast.Comment{Span: tok.Span, Text: tok.Value}}
	}

	if tok.Type == lexer.TokIdent {
		switch tok.Value {
		case vocab.If:
			return p.single(p.parseConditional())
		case vocab.In:
			return p.single(p.parseLoop())
		case vocab.Make:
			return p.single(p.parseFunctionDef())
		}
		if p.peekAt(1) == lexer.TokEquals {
			return p.finishLine(p.parseAssignment())
		}
	}

	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	return p.finishLine(expr)
}

func (p *parser) single(n ast.Node) []ast.Node {
	if n == nil || p.err != nil {
		return nil
	}
	return []ast.Node{n}
}

// finishLine consumes an optional trailing comment and the line end.
func (p *parser) finishLine(n ast.Node) []ast.Node {
	if n == nil || p.err != nil {
		return nil
	}
	out := []ast.Node{n}
	if p.peek() == lexer.TokComment {
		c := p.advance()
		out = append(out, &ast.Comment{Span: c.Span, Text: c.Value})
	}
	if !p.endOfLine() {
		return nil
	}
	return out
}

func (p *parser) endOfLine() bool {
	switch p.peek() {
	case lexer.TokNewline:
		p.advance()
		return true
	case lexer.TokEOF:
		return true
	}
	p.unexpectedToken(p.current(), "expected end of line")
	return false
}

func (p *parser) parseAssignment() ast.Node {
	nameTok := p.advance()
	p.advance() // consume '='
	value := p.parseExpr()
	if value == nil {
		return nil
	}
	return &ast.Assignment{
		Span:  p.spanFromTo(nameTok.Span, value.NodeSpan()),
		Name:  nameTok.Value,
		Value: value,
	}
}

// --- Blocks ---

func (p *parser) parseBody(header lexer.Token) []ast.Node {
	if p.peek() == lexer.TokComment {
		p.advance()
	}
	if !p.endOfLine() {
		return nil
	}
	if p.peek() == lexer.TokEOF || p.current().Indent <= header.Indent {
		p.unexpectedToken(p.current(), fmt.Sprintf("%s needs an indented body", header.Value))
		return nil
	}
	return p.parseStatements(header.Indent)
}

func lastSpan(start ast.Span, body []ast.Node) ast.Span {
	if len(body) == 0 {
		return start
	}
	return body[len(body)-1].NodeSpan()
}

func (p *parser) parseConditional() ast.Node {
	start := p.advance() // consume 'If'
	guard := p.parseBracketed()
	if guard == nil {
		return nil
	}
	body := p.parseBody(start)
	if p.err != nil {
		return nil
	}
	return &ast.Conditional{
		Span:  p.spanFromTo(start.Span, lastSpan(guard.NodeSpan(), body)),
		Guard: guard,
		Body:  body,
	}
}

func (p *parser) parseLoop() ast.Node {
	start := p.advance() // consume 'In'
	dir := p.parseBracketed()
	if dir == nil {
		return nil
	}
	body := p.parseBody(start)
	if p.err != nil {
		return nil
	}
	return &ast.Loop{
		Span: p.spanFromTo(start.Span, lastSpan(dir.NodeSpan(), body)),
		Dir:  dir,
		Body: body,
	}
}

func (p *parser) parseFunctionDef() ast.Node {
	start := p.advance() // consume 'Make'
	var nameTok lexer.Token
	if p.peek() == lexer.TokLBracket {
		p.advance()
		tok, ok := p.expectName()
		if !ok {
			return nil
		}
		nameTok = tok
		if _, ok := p.expect(lexer.TokRBracket); !ok {
			return nil
		}
	} else {
		tok, ok := p.expectName()
		if !ok {
			return nil
		}
		nameTok = tok
	}
	body := p.parseBody(start)
	if p.err != nil {
		return nil
	}
	return &ast.FunctionDef{
		Span: p.spanFromTo(start.Span, lastSpan(nameTok.Span, body)),
		Name: nameTok.Value,
		Body: body,
	}
}

// expectName accepts an identifier or a string naming a user function.
func (p *parser) expectName() (lexer.Token, bool) {
	switch p.peek() {
	case lexer.TokIdent, lexer.TokStringLit:
		return p.advance(), true
	}
	p.unexpectedToken(p.current(), "expected a function name")
	return p.current(), false
}

// parseBracketed parses '[' expr ']'.
func (p *parser) parseBracketed() ast.Node {
	if _, ok := p.expect(lexer.TokLBracket); !ok {
		return nil
	}
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokRBracket); !ok {
		return nil
	}
	return expr
}

// --- Expressions ---

func (p *parser) parseExpr() ast.Node {
	left := p.parsePrimary()
	if left == nil {
		return nil
	}
	if p.peek() == lexer.TokEqEq {
		p.advance()
		right := p.parsePrimary()
		if right == nil {
			return nil
		}
		return &ast.Equality{
			Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *parser) parsePrimary() ast.Node {
	tok := p.current()
	switch tok.Type {
	case lexer.TokStringLit:
		p.advance()
		return &ast.StrLiteral{Span: tok.Span, Value: tok.Value}

	case lexer.TokIntLit:
		p.advance()
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.unexpectedToken(tok, "integer out of range")
			return nil
		}
		return &ast.IntLiteral{Span: tok.Span, Value: v}

	case lexer.TokFloatLit:
		p.advance()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.unexpectedToken(tok, "invalid number")
			return nil
		}
		return &ast.FloatLiteral{Span: tok.Span, Value: v}

	case lexer.TokTrue, lexer.TokFalse:
		p.advance()
		return &ast.BoolLiteral{Span: tok.Span, Value: tok.Type == lexer.TokTrue}

	case lexer.TokLBracket:
		return p.parseList()

	case lexer.TokIdent:
		return p.parseWord()
	}

	p.unexpectedToken(tok, "")
	return nil
}

func (p *parser) parseList() ast.Node {
	start := p.advance() // consume '['
	elems, end := p.parseArgs()
	if p.err != nil {
		return nil
	}
	return &ast.ListExpr{
		Span:     p.spanFromTo(start.Span, end.Span),
		Elements: elems,
	}
}

// parseArgs parses a comma separated list up to and including ']'.
func (p *parser) parseArgs() ([]ast.Node, lexer.Token) {
	var args []ast.Node
	for p.peek() != lexer.TokRBracket {
		arg := p.parseExpr()
		if arg == nil {
			return nil, lexer.Token{}
		}
		args = append(args, arg)
		if p.peek() == lexer.TokComma {
			p.advance()
			continue
		}
		if p.peek() != lexer.TokRBracket {
			p.unexpectedToken(p.current(), "expected ',' or ']'")
			return nil, lexer.Token{}
		}
	}
	end := p.advance() // consume ']'
	return args, end
}

func (p *parser) parseWord() ast.Node {
	tok := p.current()
	word := tok.Value

	switch word {
	case vocab.Input:
		p.advance()
		if _, ok := p.expect(lexer.TokLBracket); !ok {
			return nil
		}
		key, ok := p.expect(lexer.TokStringLit)
		if !ok {
			return nil
		}
		end, ok := p.expect(lexer.TokRBracket)
		if !ok {
			return nil
		}
		return &ast.InputRef{Span: p.spanFromTo(tok.Span, end.Span), Key: key.Value}

	case vocab.Not:
		p.advance()
		operand := p.parseBracketed()
		if operand == nil {
			return nil
		}
		return &ast.Negate{Span: p.spanFromTo(tok.Span, p.tokens[p.pos-1].Span), Operand: operand}

	case vocab.Run:
		p.advance()
		if _, ok := p.expect(lexer.TokLBracket); !ok {
			return nil
		}
		name, ok := p.expectName()
		if !ok {
			return nil
		}
		end, ok := p.expect(lexer.TokRBracket)
		if !ok {
			return nil
		}
		return &ast.FunctionCall{Span: p.spanFromTo(tok.Span, end.Span), Name: name.Value}

	case vocab.If, vocab.In, vocab.Make:
		// Block constructs only start statements.
		p.unexpectedToken(tok, fmt.Sprintf("%s must start a line", word))
		return nil
	}

	if !vocab.Has(word) {
		if p.peekAt(1) == lexer.TokLBracket {
			p.unexpectedWord(tok)
			return nil
		}
		p.advance()
		return &ast.Identifier{Span: tok.Span, Name: word}
	}

	p.advance()
	call := &ast.OperationCall{
		Span:    tok.Span,
		Name:    strings.ToLower(word),
		Surface: word,
	}
	if p.peek() == lexer.TokLBracket {
		p.advance()
		args, end := p.parseArgs()
		if p.err != nil {
			return nil
		}
		call.Args = args
		call.Span = p.spanFromTo(tok.Span, end.Span)
	}
	return call
}

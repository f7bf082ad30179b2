// Package formatter implements the VisionScript source code formatter.
package formatter

import (
	"math"
	"strconv"
	"strings"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/vocab"
)

const indent = "    "

// Format pretty-prints a parse tree back to source code. Comments are
// preserved; a comment that followed a statement on the same line stays there.
func Format(program *ast.Program) string {
	lines := formatBlock(program.Statements, 0)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func formatBlock(stmts []ast.Node, depth int) []string {
	prefix := strings.Repeat(indent, depth)
	var lines []string
	var prevLine int
	for i, s := range stmts {
		if c, ok := s.(*ast.Comment); ok && i > 0 && len(lines) > 0 && c.Span.StartLine == prevLine {
			lines[len(lines)-1] += " " + c.Text
			continue
		}
		lines = append(lines, formatStmt(s, depth, prefix)...)
		prevLine = s.NodeSpan().StartLine
	}
	return lines
}

func formatStmt(s ast.Node, depth int, prefix string) []string {
	switch stmt := s.(type) {
	case *ast.Comment:
		return []string{prefix + stmt.Text}
	case *ast.Assignment:
		return []string{prefix + stmt.Name + " = " + formatExpr(stmt.Value)}
	case *ast.Conditional:
		head := prefix + vocab.If + "[" + formatExpr(stmt.Guard) + "]"
		return append([]string{head}, formatBlock(stmt.Body, depth+1)...)
	case *ast.Loop:
		head := prefix + vocab.In + "[" + formatExpr(stmt.Dir) + "]"
		return append([]string{head}, formatBlock(stmt.Body, depth+1)...)
	case *ast.FunctionDef:
		head := prefix + vocab.Make + " " + stmt.Name
		return append([]string{head}, formatBlock(stmt.Body, depth+1)...)
	}
	return []string{prefix + formatExpr(s)}
}

func formatExpr(e ast.Node) string {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		return strconv.FormatInt(expr.Value, 10)
	case *ast.FloatLiteral:
		return formatFloatLiteral(expr.Value)
	case *ast.BoolLiteral:
		if expr.Value {
			return vocab.True
		}
		return vocab.False
	case *ast.StrLiteral:
		return quote(expr.Value)
	case *ast.Identifier:
		return expr.Name
	case *ast.InputRef:
		return vocab.Input + "[" + quote(expr.Key) + "]"
	case *ast.ListExpr:
		return "[" + formatArgs(expr.Elements) + "]"
	case *ast.Equality:
		return formatExpr(expr.Left) + " == " + formatExpr(expr.Right)
	case *ast.Negate:
		return vocab.Not + "[" + formatExpr(expr.Operand) + "]"
	case *ast.FunctionCall:
		return vocab.Run + "[" + expr.Name + "]"
	case *ast.OperationCall:
		name := expr.Surface
		if name == "" {
			name = expr.Name
		}
		return name + "[" + formatArgs(expr.Args) + "]"
	}
	return ""
}

func formatArgs(args []ast.Node) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatExpr(a)
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatFloatLiteral(value float64) string {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	raw := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(raw, ".") {
		raw += ".0"
	}
	return raw
}

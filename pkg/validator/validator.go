// Package validator implements static checks of VisionScript programs.
//
// The checks are advisory: a program that fails validation may still run,
// since functions can arrive through Import[] and arguments through
// variables. The CLI's check command reports them.
package validator

import (
	"fmt"

	"github.com/visionscript/vscript/pkg/alias"
	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/diagnostics"
)

// minArgs lists operations that cannot do anything useful without
// arguments.
var minArgs = map[string]int{
	"classify":      1,
	"contains":      1,
	"countinregion": 4,
	"import":        1,
	"label":         1,
	"resize":        2,
	"rotate":        1,
	"search":        1,
	"train":         1,
	"use":           1,
}

type validator struct {
	diags []diagnostics.Diagnostic
	// fnNames holds every function made anywhere in the program.
	fnNames map[string]bool
	// varNames holds every variable assigned anywhere in the program.
	varNames map[string]bool
	imports  bool
}

// Validate performs static analysis on a program and returns diagnostics.
func Validate(program *ast.Program) []diagnostics.Diagnostic {
	v := &validator{
		fnNames:  make(map[string]bool),
		varNames: make(map[string]bool),
	}
	v.collect(program.Statements)
	v.validateStatements(program.Statements)
	return v.diags
}

func (v *validator) addDiag(code, msg string, span ast.Span) {
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, &span, ""))
}

// collect records definitions before validation so a function may be
// called above the line that makes it.
func (v *validator) collect(stmts []ast.Node) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.FunctionDef:
			if v.fnNames[s.Name] {
				v.addDiag(diagnostics.EFnDup, fmt.Sprintf("function %s is made more than once", s.Name), s.Span)
			}
			v.fnNames[s.Name] = true
			v.collect(s.Body)
		case *ast.Assignment:
			v.varNames[s.Name] = true
		case *ast.Conditional:
			v.collect(s.Body)
		case *ast.Loop:
			v.collect(s.Body)
		case *ast.OperationCall:
			if alias.Resolve(s.Name) == "import" {
				v.imports = true
			}
		}
	}
}

func (v *validator) validateStatements(stmts []ast.Node) {
	for _, stmt := range stmts {
		v.validateNode(stmt)
	}
}

func (v *validator) validateNode(node ast.Node) {
	switch n := node.(type) {
	case *ast.Assignment:
		v.validateNode(n.Value)
	case *ast.ListExpr:
		for _, e := range n.Elements {
			v.validateNode(e)
		}
	case *ast.Equality:
		v.validateNode(n.Left)
		v.validateNode(n.Right)
	case *ast.Negate:
		v.validateNode(n.Operand)
	case *ast.Conditional:
		v.validateNode(n.Guard)
		v.validateStatements(n.Body)
	case *ast.Loop:
		switch n.Dir.(type) {
		case *ast.StrLiteral, *ast.Identifier, *ast.InputRef, *ast.OperationCall:
		default:
			v.addDiag(diagnostics.ELoopDir, "In[] expects a folder name", n.Dir.NodeSpan())
		}
		v.validateStatements(n.Body)
	case *ast.FunctionDef:
		v.validateStatements(n.Body)
	case *ast.FunctionCall:
		v.checkDefined(n.Name, n.Span, false)
	case *ast.Identifier:
		v.checkDefined(n.Name, n.Span, true)
	case *ast.OperationCall:
		name := alias.Resolve(n.Name)
		if want := minArgs[name]; len(n.Args) < want {
			v.addDiag(diagnostics.EArity,
				fmt.Sprintf("%s expects at least %d argument(s), got %d", n.Surface, want, len(n.Args)), n.Span)
		}
		for _, a := range n.Args {
			v.validateNode(a)
		}
	}
}

func (v *validator) checkDefined(name string, span ast.Span, variableOK bool) {
	if v.imports || v.fnNames[name] || (variableOK && v.varNames[name]) {
		return
	}
	v.addDiag(diagnostics.EUndefinedFn, fmt.Sprintf("Function %s does not exist.", name), span)
}

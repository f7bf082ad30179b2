// Package ast defines the VisionScript parse tree.
//
// The tree is a closed set of node variants. Consumers switch over the
// concrete types; there is no attribute probing.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all parse tree nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
	node() // sealed marker
}

// Program is the root of a parsed source file.
type Program struct {
	Span       Span
	Statements []Node
}

// --- Literals ---

type IntLiteral struct {
	Span  Span
	Value int64
}

func (n *IntLiteral) Kind() string   { return "IntLiteral" }
func (n *IntLiteral) NodeSpan() Span { return n.Span }
func (n *IntLiteral) node()          {}

type FloatLiteral struct {
	Span  Span
	Value float64
}

func (n *FloatLiteral) Kind() string   { return "FloatLiteral" }
func (n *FloatLiteral) NodeSpan() Span { return n.Span }
func (n *FloatLiteral) node()          {}

type BoolLiteral struct {
	Span  Span
	Value bool
}

func (n *BoolLiteral) Kind() string   { return "BoolLiteral" }
func (n *BoolLiteral) NodeSpan() Span { return n.Span }
func (n *BoolLiteral) node()          {}

type StrLiteral struct {
	Span  Span
	Value string
}

func (n *StrLiteral) Kind() string   { return "StrLiteral" }
func (n *StrLiteral) NodeSpan() Span { return n.Span }
func (n *StrLiteral) node()          {}

// --- References ---

// Identifier is a bare name. At evaluation time it resolves to a variable
// or, failing that, to a user function whose body is evaluated in place.
type Identifier struct {
	Span Span
	Name string
}

func (n *Identifier) Kind() string   { return "Identifier" }
func (n *Identifier) NodeSpan() Span { return n.Span }
func (n *Identifier) node()          {}

// InputRef reads a key from the externally supplied input bindings.
type InputRef struct {
	Span Span
	Key  string
}

func (n *InputRef) Kind() string   { return "InputRef" }
func (n *InputRef) NodeSpan() Span { return n.Span }
func (n *InputRef) node()          {}

// --- Collections ---

type ListExpr struct {
	Span     Span
	Elements []Node
}

func (n *ListExpr) Kind() string   { return "ListExpr" }
func (n *ListExpr) NodeSpan() Span { return n.Span }
func (n *ListExpr) node()          {}

// --- Statements ---

// Assignment binds a variable: name = value.
type Assignment struct {
	Span  Span
	Name  string
	Value Node
}

func (n *Assignment) Kind() string   { return "Assignment" }
func (n *Assignment) NodeSpan() Span { return n.Span }
func (n *Assignment) node()          {}

// Comment is kept in the tree so the formatter can reproduce it.
type Comment struct {
	Span Span
	Text string
}

func (n *Comment) Kind() string   { return "Comment" }
func (n *Comment) NodeSpan() Span { return n.Span }
func (n *Comment) node()          {}

// --- Operators ---

type Equality struct {
	Span  Span
	Left  Node
	Right Node
}

func (n *Equality) Kind() string   { return "Equality" }
func (n *Equality) NodeSpan() Span { return n.Span }
func (n *Equality) node()          {}

type Negate struct {
	Span    Span
	Operand Node
}

func (n *Negate) Kind() string   { return "Negate" }
func (n *Negate) NodeSpan() Span { return n.Span }
func (n *Negate) node()          {}

// --- Control flow ---

// Conditional is If[guard] followed by an indented body.
type Conditional struct {
	Span  Span
	Guard Node
	Body  []Node
}

func (n *Conditional) Kind() string   { return "Conditional" }
func (n *Conditional) NodeSpan() Span { return n.Span }
func (n *Conditional) node()          {}

// Loop is In[directory] followed by an indented body run once per file.
type Loop struct {
	Span Span
	Dir  Node
	Body []Node
}

func (n *Loop) Kind() string   { return "Loop" }
func (n *Loop) NodeSpan() Span { return n.Span }
func (n *Loop) node()          {}

// FunctionDef is Make name followed by an indented body.
type FunctionDef struct {
	Span Span
	Name string
	Body []Node
}

func (n *FunctionDef) Kind() string   { return "FunctionDef" }
func (n *FunctionDef) NodeSpan() Span { return n.Span }
func (n *FunctionDef) node()          {}

// FunctionCall is Run[name].
type FunctionCall struct {
	Span Span
	Name string
}

func (n *FunctionCall) Kind() string   { return "FunctionCall" }
func (n *FunctionCall) NodeSpan() Span { return n.Span }
func (n *FunctionCall) node()          {}

// OperationCall invokes a named operation. Name is the lower-cased surface
// name as written; alias resolution happens in the evaluator.
type OperationCall struct {
	Span    Span
	Name    string
	Surface string
	Args    []Node
}

func (n *OperationCall) Kind() string   { return "OperationCall" }
func (n *OperationCall) NodeSpan() Span { return n.Span }
func (n *OperationCall) node()          {}

package parser

import "bytes"

type Node interface {
	TokenLiteral() string
	String() string
	// CountNodes reports the size of the subtree rooted at this node,
	// used to bound condition complexity at load time.
	CountNodes() int
}

type Expression interface {
	Node
	expressionNode()
}

type Identifier struct {
	Token Token // the IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }
func (i *Identifier) CountNodes() int      { return 1 }

type IntegerLiteral struct {
	Token Token // the INT token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }
func (il *IntegerLiteral) CountNodes() int      { return 1 }

type FloatLiteral struct {
	Token Token // the FLOAT token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }
func (fl *FloatLiteral) CountNodes() int      { return 1 }

type StringLiteral struct {
	Token Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return `"` + sl.Value + `"` }
func (sl *StringLiteral) CountNodes() int      { return 1 }

type BooleanLiteral struct {
	Token Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Literal }
func (bl *BooleanLiteral) String() string       { return bl.Token.Literal }
func (bl *BooleanLiteral) CountNodes() int      { return 1 }

// DurationExpression is a numeric literal qualified by a time unit,
// e.g. 500ms or 45s. The evaluator normalizes these to seconds.
type DurationExpression struct {
	Token Token // the unit token (ms, s, m)
	Value Expression
	Unit  string
}

func (de *DurationExpression) expressionNode()      {}
func (de *DurationExpression) TokenLiteral() string { return de.Token.Literal }
func (de *DurationExpression) String() string {
	var out bytes.Buffer
	if de.Value != nil {
		out.WriteString(de.Value.String())
	}
	out.WriteString(de.Unit)
	return out.String()
}
func (de *DurationExpression) CountNodes() int {
	n := 1
	if de.Value != nil {
		n += de.Value.CountNodes()
	}
	return n
}

// MetricExpression is a two-part metric reference like clicks.projects
// or scroll.depth. The left side is the namespace, the right the field.
type MetricExpression struct {
	Token     Token // the '.' token
	Namespace string
	Field     string
}

func (me *MetricExpression) expressionNode()      {}
func (me *MetricExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MetricExpression) String() string       { return me.Namespace + "." + me.Field }
func (me *MetricExpression) CountNodes() int      { return 1 }

type PrefixExpression struct {
	Token    Token // the prefix token, e.g. ! or -
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(pe.Operator)
	if pe.Right != nil {
		out.WriteString(pe.Right.String())
	}
	out.WriteString(")")
	return out.String()
}
func (pe *PrefixExpression) CountNodes() int {
	n := 1
	if pe.Right != nil {
		n += pe.Right.CountNodes()
	}
	return n
}

type InfixExpression struct {
	Token    Token // the operator token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	if ie.Left != nil {
		out.WriteString(ie.Left.String())
	}
	out.WriteString(" " + ie.Operator + " ")
	if ie.Right != nil {
		out.WriteString(ie.Right.String())
	}
	out.WriteString(")")
	return out.String()
}
func (ie *InfixExpression) CountNodes() int {
	n := 1
	if ie.Left != nil {
		n += ie.Left.CountNodes()
	}
	if ie.Right != nil {
		n += ie.Right.CountNodes()
	}
	return n
}

// Metrics returns every metric reference in the expression tree, used to
// validate conditions against the known metric namespace at load time.
func Metrics(expr Expression) []*MetricExpression {
	var refs []*MetricExpression
	collectMetrics(expr, &refs)
	return refs
}

func collectMetrics(expr Expression, refs *[]*MetricExpression) {
	switch node := expr.(type) {
	case *MetricExpression:
		*refs = append(*refs, node)
	case *PrefixExpression:
		collectMetrics(node.Right, refs)
	case *InfixExpression:
		collectMetrics(node.Left, refs)
		collectMetrics(node.Right, refs)
	case *DurationExpression:
		collectMetrics(node.Value, refs)
	}
}

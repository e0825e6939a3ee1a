package evolve

import (
	"fmt"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/metrics"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/parser"
)

type Object interface {
	Type() ObjectType
	Inspect() string
}

type ObjectType string

const (
	INTEGER_OBJ = "INTEGER"
	FLOAT_OBJ   = "FLOAT"
	BOOLEAN_OBJ = "BOOLEAN"
	STRING_OBJ  = "STRING"
	ERROR_OBJ   = "ERROR"
)

type Integer struct {
	Value int64
}

func (i *Integer) Inspect() string  { return fmt.Sprintf("%d", i.Value) }
func (i *Integer) Type() ObjectType { return INTEGER_OBJ }

type Float struct {
	Value float64
}

func (f *Float) Inspect() string  { return fmt.Sprintf("%f", f.Value) }
func (f *Float) Type() ObjectType { return FLOAT_OBJ }

type Boolean struct {
	Value bool
}

func (b *Boolean) Inspect() string  { return fmt.Sprintf("%t", b.Value) }
func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }

type String struct {
	Value string
}

func (s *String) Inspect() string  { return s.Value }
func (s *String) Type() ObjectType { return STRING_OBJ }

type Error struct {
	Message string
}

func (e *Error) Inspect() string  { return "ERROR: " + e.Message }
func (e *Error) Type() ObjectType { return ERROR_OBJ }

var (
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

// evalCondition evaluates a compiled condition against a snapshot and
// reports whether it holds. Evaluation errors are returned so the engine
// can log them; an erroring condition never fires a rule.
func evalCondition(expr parser.Expression, snap metrics.Snapshot) (bool, error) {
	result := eval(expr, snap)
	if err, ok := result.(*Error); ok {
		return false, fmt.Errorf("%s", err.Message)
	}
	return isTruthy(result), nil
}

func eval(node parser.Expression, snap metrics.Snapshot) Object {
	switch node := node.(type) {
	case *parser.InfixExpression:
		left := eval(node.Left, snap)
		if isError(left) {
			return left
		}
		right := eval(node.Right, snap)
		if isError(right) {
			return right
		}
		return evalInfixExpression(node.Operator, left, right)

	case *parser.PrefixExpression:
		right := eval(node.Right, snap)
		if isError(right) {
			return right
		}
		return evalPrefixExpression(node.Operator, right)

	case *parser.MetricExpression:
		return metricValue(node.Namespace, node.Field, snap)

	case *parser.IntegerLiteral:
		return &Integer{Value: node.Value}

	case *parser.FloatLiteral:
		return &Float{Value: node.Value}

	case *parser.StringLiteral:
		return &String{Value: node.Value}

	case *parser.BooleanLiteral:
		return nativeBoolToObject(node.Value)

	case *parser.DurationExpression:
		return evalDurationExpression(node, snap)

	case *parser.Identifier:
		return newError("bare identifier %q: metrics are referenced as namespace.field", node.Value)

	default:
		return newError("unknown node type: %T", node)
	}
}

func evalInfixExpression(operator string, left, right Object) Object {
	switch {
	case left.Type() == INTEGER_OBJ && right.Type() == INTEGER_OBJ:
		return evalIntegerInfixExpression(operator, left, right)
	case isNumeric(left) && isNumeric(right):
		return evalFloatInfixExpression(operator, left, right)
	case left.Type() == BOOLEAN_OBJ && right.Type() == BOOLEAN_OBJ:
		return evalBooleanInfixExpression(operator, left, right)
	case left.Type() == STRING_OBJ && right.Type() == STRING_OBJ:
		return evalStringInfixExpression(operator, left, right)
	default:
		return newError("type mismatch: %s %s %s", left.Type(), operator, right.Type())
	}
}

func evalIntegerInfixExpression(operator string, left, right Object) Object {
	leftVal := left.(*Integer).Value
	rightVal := right.(*Integer).Value

	switch operator {
	case "+":
		return &Integer{Value: leftVal + rightVal}
	case "-":
		return &Integer{Value: leftVal - rightVal}
	case "*":
		return &Integer{Value: leftVal * rightVal}
	case "/":
		if rightVal == 0 {
			return newError("division by zero")
		}
		return &Integer{Value: leftVal / rightVal}
	case "<":
		return nativeBoolToObject(leftVal < rightVal)
	case ">":
		return nativeBoolToObject(leftVal > rightVal)
	case "<=":
		return nativeBoolToObject(leftVal <= rightVal)
	case ">=":
		return nativeBoolToObject(leftVal >= rightVal)
	case "==":
		return nativeBoolToObject(leftVal == rightVal)
	case "!=":
		return nativeBoolToObject(leftVal != rightVal)
	default:
		return newError("unknown operator: %s", operator)
	}
}

func evalFloatInfixExpression(operator string, left, right Object) Object {
	leftVal := objectToFloat(left)
	rightVal := objectToFloat(right)

	switch operator {
	case "+":
		return &Float{Value: leftVal + rightVal}
	case "-":
		return &Float{Value: leftVal - rightVal}
	case "*":
		return &Float{Value: leftVal * rightVal}
	case "/":
		if rightVal == 0 {
			return newError("division by zero")
		}
		return &Float{Value: leftVal / rightVal}
	case "<":
		return nativeBoolToObject(leftVal < rightVal)
	case ">":
		return nativeBoolToObject(leftVal > rightVal)
	case "<=":
		return nativeBoolToObject(leftVal <= rightVal)
	case ">=":
		return nativeBoolToObject(leftVal >= rightVal)
	case "==":
		return nativeBoolToObject(leftVal == rightVal)
	case "!=":
		return nativeBoolToObject(leftVal != rightVal)
	default:
		return newError("unknown operator: %s", operator)
	}
}

func evalBooleanInfixExpression(operator string, left, right Object) Object {
	leftVal := left.(*Boolean).Value
	rightVal := right.(*Boolean).Value

	switch operator {
	case "&&":
		return nativeBoolToObject(leftVal && rightVal)
	case "||":
		return nativeBoolToObject(leftVal || rightVal)
	case "==":
		return nativeBoolToObject(leftVal == rightVal)
	case "!=":
		return nativeBoolToObject(leftVal != rightVal)
	default:
		return newError("unknown operator: %s", operator)
	}
}

func evalStringInfixExpression(operator string, left, right Object) Object {
	leftVal := left.(*String).Value
	rightVal := right.(*String).Value

	switch operator {
	case "==":
		return nativeBoolToObject(leftVal == rightVal)
	case "!=":
		return nativeBoolToObject(leftVal != rightVal)
	default:
		return newError("unknown operator: %s", operator)
	}
}

func evalPrefixExpression(operator string, right Object) Object {
	switch operator {
	case "!":
		if boolean, ok := right.(*Boolean); ok {
			return nativeBoolToObject(!boolean.Value)
		}
		return newError("operator ! expects a boolean, got %s", right.Type())
	case "-":
		switch o := right.(type) {
		case *Integer:
			return &Integer{Value: -o.Value}
		case *Float:
			return &Float{Value: -o.Value}
		default:
			return newError("operator - expects a number, got %s", right.Type())
		}
	default:
		return newError("unknown operator: %s", operator)
	}
}

// evalDurationExpression normalizes duration literals to seconds so they
// compare directly against dwell metrics.
func evalDurationExpression(node *parser.DurationExpression, snap metrics.Snapshot) Object {
	value := eval(node.Value, snap)
	if isError(value) {
		return value
	}

	multiplier, ok := unitSeconds(node.Unit)
	if !ok {
		return newError("unknown unit: %s", node.Unit)
	}

	return &Float{Value: objectToFloat(value) * multiplier}
}

func unitSeconds(unit string) (float64, bool) {
	switch unit {
	case "ms":
		return 0.001, true
	case "s":
		return 1, true
	case "m":
		return 60, true
	default:
		return 0, false
	}
}

// metricValue resolves a namespace.field reference against the snapshot.
// validateMetric guarantees the same resolution succeeds at load time, so
// an error here means the two fell out of sync.
func metricValue(namespace, field string, snap metrics.Snapshot) Object {
	switch namespace {
	case "clicks":
		if field == "total" {
			return &Integer{Value: int64(snap.TotalClicks())}
		}
		if count, ok := snap.ClickCounts[metrics.Category(field)]; ok {
			return &Integer{Value: int64(count)}
		}
	case "dwell":
		if field == "total" {
			return &Float{Value: float64(snap.TotalDwellMillis()) / 1000.0}
		}
		if millis, ok := snap.SectionDwellMillis[metrics.Section(field)]; ok {
			return &Float{Value: float64(millis) / 1000.0}
		}
	case "views":
		if count, ok := snap.SectionViewCounts[metrics.Section(field)]; ok {
			return &Integer{Value: int64(count)}
		}
	case "scroll":
		if field == "depth" {
			return &Integer{Value: int64(snap.ScrollDepthPercent)}
		}
	case "visits":
		if field == "count" {
			return &Integer{Value: int64(snap.VisitCount)}
		}
	case "score":
		if field == "engagement" {
			return &Float{Value: snap.EngagementScore()}
		}
	case "theme":
		if field == "preference" {
			return &String{Value: string(snap.ThemePreference)}
		}
	}

	return newError("unknown metric: %s.%s", namespace, field)
}

// validateMetric rejects references outside the known namespace at rule
// load time, so a typo in the catalog is caught before evaluation.
func validateMetric(namespace, field string) error {
	obj := metricValue(namespace, field, metrics.NewSnapshot())
	if err, ok := obj.(*Error); ok {
		return fmt.Errorf("%s", err.Message)
	}
	return nil
}

func isNumeric(obj Object) bool {
	return obj.Type() == INTEGER_OBJ || obj.Type() == FLOAT_OBJ
}

func objectToFloat(obj Object) float64 {
	switch o := obj.(type) {
	case *Integer:
		return float64(o.Value)
	case *Float:
		return o.Value
	default:
		return 0
	}
}

func isError(obj Object) bool {
	if obj != nil {
		return obj.Type() == ERROR_OBJ
	}
	return false
}

func isTruthy(obj Object) bool {
	if boolean, ok := obj.(*Boolean); ok {
		return boolean.Value
	}
	return false
}

func newError(format string, a ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, a...)}
}

func nativeBoolToObject(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

package parser

import (
	"testing"
)

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"a > 1 && b < 2", "((a > 1) && (b < 2))"},
		{"a && b || c", "((a && b) || c)"},
		{"-5 + 10", "((-5) + 10)"},
		{"!true", "(!true)"},
		{"a == b != c", "((a == b) != c)"},
		{"clicks.projects > clicks.about + 2", "(clicks.projects > (clicks.about + 2))"},
		{"scroll.depth >= 80", "(scroll.depth >= 80)"},
		{"dwell.projects > 90s", "(dwell.projects > 90s)"},
		{"dwell.total / visits.count > 30", "((dwell.total / visits.count) > 30)"},
		{`theme.preference == "dark"`, `(theme.preference == "dark")`},
	}

	for _, tt := range tests {
		expr, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.input, err)
			continue
		}
		if got := expr.String(); got != tt.expected {
			t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestParseMetricExpression(t *testing.T) {
	expr, err := Parse("clicks.projects > 3")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	infix, ok := expr.(*InfixExpression)
	if !ok {
		t.Fatalf("expected InfixExpression, got %T", expr)
	}
	metric, ok := infix.Left.(*MetricExpression)
	if !ok {
		t.Fatalf("expected MetricExpression on the left, got %T", infix.Left)
	}
	if metric.Namespace != "clicks" || metric.Field != "projects" {
		t.Errorf("metric = %s.%s, want clicks.projects", metric.Namespace, metric.Field)
	}
}

func TestParseDurations(t *testing.T) {
	tests := []struct {
		input string
		unit  string
	}{
		{"dwell.home > 500ms", "ms"},
		{"dwell.home > 45s", "s"},
		{"dwell.home > 2m", "m"},
		{"dwell.home > 1.5m", "m"},
	}

	for _, tt := range tests {
		expr, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.input, err)
			continue
		}
		infix := expr.(*InfixExpression)
		dur, ok := infix.Right.(*DurationExpression)
		if !ok {
			t.Errorf("Parse(%q): right side is %T, want DurationExpression", tt.input, infix.Right)
			continue
		}
		if dur.Unit != tt.unit {
			t.Errorf("Parse(%q): unit = %q, want %q", tt.input, dur.Unit, tt.unit)
		}
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"clicks.projects >",
		"clicks.projects > 3 extra tokens",
		"(clicks.projects > 3",
		"clicks.3",
		"(a > 1).field",
		"a = b",
		"a & b",
	}

	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestMetricsCollection(t *testing.T) {
	expr, err := Parse("clicks.projects > clicks.about + 2 && dwell.projects > 90s || !(scroll.depth >= 80)")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	refs := Metrics(expr)
	want := []string{"clicks.projects", "clicks.about", "dwell.projects", "scroll.depth"}
	if len(refs) != len(want) {
		t.Fatalf("collected %d metric refs, want %d", len(refs), len(want))
	}
	for i, ref := range refs {
		if ref.String() != want[i] {
			t.Errorf("ref[%d] = %s, want %s", i, ref.String(), want[i])
		}
	}
}

func TestCountNodes(t *testing.T) {
	expr, err := Parse("a > 1 && b < 2")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// &&, two comparisons, two identifiers, two integers.
	if got := expr.CountNodes(); got != 7 {
		t.Errorf("CountNodes = %d, want 7", got)
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("a &&\nb")

	tok := l.NextToken()
	if tok.Type != IDENT || tok.Line != 1 {
		t.Errorf("first token = %v line %d, want IDENT line 1", tok.Type, tok.Line)
	}
	tok = l.NextToken()
	if tok.Type != AND {
		t.Errorf("second token = %v, want &&", tok.Type)
	}
	tok = l.NextToken()
	if tok.Type != IDENT || tok.Line != 2 {
		t.Errorf("third token = %v line %d, want IDENT line 2", tok.Type, tok.Line)
	}
}

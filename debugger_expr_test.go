package main

import "testing"

func TestParseExprRejectsInvalidSyntax(t *testing.T) {
	if _, err := ParseExpr("A ==="); err == nil {
		t.Fatal("expected an error for invalid Lua syntax")
	}
}

func TestParseExprEmptyStringIsUnconditional(t *testing.T) {
	node, err := ParseExpr("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != nil {
		t.Fatal("ParseExpr(\"\") should return a nil node (unconditional)")
	}
}

func TestExprEvaluatorEvalsRegisterCondition(t *testing.T) {
	ev := NewExprEvaluator()
	node, err := ParseExpr("A == 66 and BC > 100")
	if err != nil {
		t.Fatalf("ParseExpr error: %v", err)
	}

	regs := RegisterSnapshot{A: 66, B: 1, C: 0}
	v, err := ev.Eval(node, regs)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if v == 0 {
		t.Fatal("expected condition to evaluate truthy (A==66, BC=256>100)")
	}

	regs.A = 0
	v, err = ev.Eval(node, regs)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if v != 0 {
		t.Fatal("expected condition to evaluate falsy when A != 66")
	}
}

func TestExprEvaluatorNilNodeIsAlwaysTrue(t *testing.T) {
	ev := NewExprEvaluator()
	v, err := ev.Eval(nil, RegisterSnapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == 0 {
		t.Fatal("nil condition node must evaluate truthy (unconditional breakpoint)")
	}
}

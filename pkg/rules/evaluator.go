package rules

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// MessageVars is the view of one inbound email that rule expressions see.
type MessageVars struct {
	Subject         string
	Sender          string
	Recipient       string
	AttachmentCount int
	AttachmentNames []string
	AttachmentSize  int64
	HasText         bool
	HasHTML         bool
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.StringType),
		cel.Variable("sender", cel.StringType),
		cel.Variable("recipient", cel.StringType),
		cel.Variable("attachment_count", cel.IntType),
		cel.Variable("attachment_names", cel.ListType(cel.StringType)),
		cel.Variable("attachment_size", cel.IntType),
		cel.Variable("has_text", cel.BoolType),
		cel.Variable("has_html", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateFilterExpression checks syntax and that the expression yields a bool.
// Called at startup so a bad rule is a configuration error, not a runtime one.
func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// Rule is a compiled filter expression, safe for reuse across cycles.
type Rule struct {
	expression string
	program    cel.Program
}

func (r *Rule) Expression() string {
	return r.expression
}

func (e *Evaluator) Compile(expression string) (*Rule, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Rule{expression: expression, program: program}, nil
}

func (r *Rule) Eval(ctx context.Context, msg MessageVars) (bool, error) {
	vars := map[string]interface{}{
		"subject":          msg.Subject,
		"sender":           msg.Sender,
		"recipient":        msg.Recipient,
		"attachment_count": msg.AttachmentCount,
		"attachment_names": msg.AttachmentNames,
		"attachment_size":  msg.AttachmentSize,
		"has_text":         msg.HasText,
		"has_html":         msg.HasHTML,
	}

	result, _, err := r.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

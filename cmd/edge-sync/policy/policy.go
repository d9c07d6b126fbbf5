package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/lyzr/edgesync/common/models"
)

// Broadcast decides which notifications go to every edge of the tenant
// instead of the edges related to the entity. The expression sees two
// string variables: entity_type and action.
type Broadcast struct {
	expr string
	prg  cel.Program
}

// NewBroadcast compiles the policy expression. An empty expression never broadcasts.
func NewBroadcast(expr string) (*Broadcast, error) {
	if expr == "" {
		return &Broadcast{}, nil
	}

	prg, err := compile(expr)
	if err != nil {
		return nil, err
	}

	return &Broadcast{expr: expr, prg: prg}, nil
}

// Expression returns the source expression
func (b *Broadcast) Expression() string {
	return b.expr
}

// Matches reports whether the notification should be sent to all edges
func (b *Broadcast) Matches(n *models.EntityChangeNotification) (bool, error) {
	if b.prg == nil {
		return false, nil
	}

	out, _, err := b.prg.Eval(map[string]interface{}{
		"entity_type": string(n.EntityType),
		"action":      string(n.Action),
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}

	return result, nil
}

func compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity_type", cel.StringType),
		cel.Variable("action", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("broadcast policy must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return prg, nil
}

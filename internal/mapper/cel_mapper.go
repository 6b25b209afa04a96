package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	celhelpers "github.com/project-kessel/remoteclaim/internal/cel"
	"github.com/project-kessel/remoteclaim/internal/claims"
	"github.com/project-kessel/remoteclaim/internal/service"
)

// CELMapper produces claims from a CEL expression. The expression sees
//
//	identity    username, client_id, client_ids, attributes (or null)
//	token_type  "access_token", "id_token" or "userinfo"
//	datasource  datasource(name) returns the decoded JSON of a data source
//
// and must evaluate to a map (or null for no claims), for example
//
//	{"roles": datasource("authz").roles}
//	token_type == "access_token" ? {"groups": datasource("authz").groups} : {}
//
// A data source failure fails the mapping even when the expression would
// have short-circuited past it.
type CELMapper struct {
	script string
	ast    *cel.Ast
}

// NewCELMapper compiles script. Compilation errors are reported here rather
// than at issuance time.
func NewCELMapper(script string) (*CELMapper, error) {
	if script == "" {
		return nil, errors.New("CEL script cannot be empty")
	}

	// Declarations only; the registry is bound per evaluation.
	env, err := newEnv(celhelpers.NewMapperInputLibrary(context.Background(), nil, nil))
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(script)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL script: %w", issues.Err())
	}
	return &CELMapper{script: script, ast: ast}, nil
}

func newEnv(lib *celhelpers.MapperInputLibrary) (*cel.Env, error) {
	env, err := cel.NewEnv(lib.EnvOption())
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// Map implements service.ClaimMapper
func (m *CELMapper) Map(ctx context.Context, input *service.MapperInput) (claims.Claims, error) {
	if input == nil {
		return nil, errors.New("mapper input cannot be nil")
	}

	value, err := m.eval(ctx, input)
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return claims.Claims(v), nil
	default:
		return nil, fmt.Errorf("CEL expression must evaluate to a map, got: %T", value)
	}
}

func (m *CELMapper) eval(ctx context.Context, input *service.MapperInput) (any, error) {
	lib := celhelpers.NewMapperInputLibrary(ctx, input.DataSourceRegistry, input.DataSourceInput)
	env, err := newEnv(lib)
	if err != nil {
		return nil, err
	}
	program, err := env.Program(m.ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	vars := map[string]any{
		"identity":   nil,
		"token_type": string(input.TokenType),
	}
	if input.Identity != nil {
		vars["identity"] = celhelpers.IdentityToMap(input.Identity)
	}

	out, _, evalErr := program.Eval(vars)
	// A failed fetch may have been swallowed by || or ?: in the expression.
	if err := lib.Err(); err != nil {
		return nil, err
	}
	if evalErr != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", evalErr)
	}
	return celhelpers.ConvertCELValue(out), nil
}

// Script returns the source expression
func (m *CELMapper) Script() string {
	return m.script
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/validation"
)

const signupQuery = "data.campus.signup"

// DefaultSignupPolicy admits an email when its domain equals, or is a subdomain of,
// one of input.allowed_domains.
const DefaultSignupPolicy = `package campus.signup

default allow := false

default reason := "domain_not_allowed"

email_domain := lower(input.email_domain)

normalized(d) := trim_left(lower(d), "@.")

matches(d) if email_domain == normalized(d)

matches(d) if endswith(email_domain, concat("", [".", normalized(d)]))

allow if {
	email_domain != ""
	some d in input.allowed_domains
	normalized(d) != ""
	matches(d)
}

reason := "" if allow

reason := "missing_domain" if email_domain == ""
`

// OPAEvaluator evaluates the campus.signup Rego policy in-process.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
	log   *zap.Logger
}

// NewOPAEvaluator compiles module (DefaultSignupPolicy when empty) and prepares the query.
func NewOPAEvaluator(ctx context.Context, module string, log *zap.Logger) (*OPAEvaluator, error) {
	if module == "" {
		module = DefaultSignupPolicy
	}
	if log == nil {
		log = zap.NewNop()
	}
	q, err := prepare(ctx, module)
	if err != nil {
		return nil, err
	}
	return &OPAEvaluator{query: q, log: log}, nil
}

// NewOPAEvaluatorFromFile loads the policy from path, or uses the default when path is empty.
func NewOPAEvaluatorFromFile(ctx context.Context, path string, log *zap.Logger) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "", log)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signup policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b), log)
}

func prepare(ctx context.Context, module string) (rego.PreparedEvalQuery, error) {
	compiler, err := ast.CompileModules(map[string]string{"signup.rego": module})
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile signup policy: %w", err)
	}
	q, err := rego.New(rego.Query(signupQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare signup policy: %w", err)
	}
	return q, nil
}

// HealthCheck compiles and evaluates the default policy against a known-good input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	q, err := prepare(ctx, DefaultSignupPolicy)
	if err != nil {
		return err
	}
	d, err := eval(ctx, q, map[string]interface{}{
		"email_domain":    "example.edu",
		"allowed_domains": []interface{}{"example.edu"},
	})
	if err != nil {
		return err
	}
	if !d.Allowed {
		return errors.New("default signup policy rejected a matching domain")
	}
	return nil
}

// EvaluateSignup evaluates the policy for email. If the engine fails the Go suffix check
// decides and the engine error is logged, so signup never depends on Rego availability.
func (e *OPAEvaluator) EvaluateSignup(ctx context.Context, email string, allowedDomains []string) (SignupDecision, error) {
	allowed := make([]interface{}, len(allowedDomains))
	for i, d := range allowedDomains {
		allowed[i] = d
	}
	input := map[string]interface{}{
		"email_domain":    validation.EmailDomain(email),
		"allowed_domains": allowed,
	}
	d, err := eval(ctx, e.query, input)
	if err != nil {
		e.log.Warn("policy: signup evaluation failed, using suffix check", zap.Error(err))
		return FallbackDecision(email, allowedDomains), nil
	}
	return d, nil
}

func eval(ctx context.Context, q rego.PreparedEvalQuery, input map[string]interface{}) (SignupDecision, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return SignupDecision{}, fmt.Errorf("eval signup policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return SignupDecision{}, errors.New("signup policy returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return SignupDecision{}, errors.New("signup policy result is not an object")
	}
	var d SignupDecision
	d.Allowed, _ = doc["allow"].(bool)
	d.Reason, _ = doc["reason"].(string)
	if !d.Allowed && d.Reason == "" {
		d.Reason = "domain_not_allowed"
	}
	return d, nil
}

// FallbackDecision applies the suffix check without Rego.
func FallbackDecision(email string, allowedDomains []string) SignupDecision {
	if strings.TrimSpace(validation.EmailDomain(email)) == "" {
		return SignupDecision{Reason: "missing_domain"}
	}
	for _, d := range allowedDomains {
		if validation.HasDomainSuffix(email, d) {
			return SignupDecision{Allowed: true}
		}
	}
	return SignupDecision{Reason: "domain_not_allowed"}
}

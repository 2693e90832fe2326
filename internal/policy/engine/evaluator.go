package engine

import "context"

// SignupDecision is the outcome of the signup admission policy.
type SignupDecision struct {
	Allowed bool
	// Reason is empty when Allowed; otherwise a machine-readable cause such as
	// "domain_not_allowed" or "missing_domain".
	Reason string
}

// Evaluator decides whether an email address may register.
type Evaluator interface {
	// EvaluateSignup applies the admission policy to email given the currently allowed
	// institution domains.
	EvaluateSignup(ctx context.Context, email string, allowedDomains []string) (SignupDecision, error)
	HealthCheck(ctx context.Context) error
}

package domain

import "context"

// Decision is the outcome of a guard.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Allow is the permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a denying decision.
func Deny(message, code string) Decision {
	return Decision{Allowed: false, Message: message, Code: code}
}

// Checker is the capability a guard implements.
type Checker interface {
	Allows(ctx context.Context, tc *TransitionContext) (Decision, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, tc *TransitionContext) (Decision, error)

func (f CheckerFunc) Allows(ctx context.Context, tc *TransitionContext) (Decision, error) {
	return f(ctx, tc)
}

// Guard is either a callable Checker or a named reference resolved at evaluation time.
type Guard struct {
	Ref     string
	Checker Checker
}

// GuardOf wraps a Checker implementation.
func GuardOf(c Checker) Guard {
	return Guard{Checker: c}
}

// GuardFunc wraps a function returning a full Decision.
func GuardFunc(fn func(ctx context.Context, tc *TransitionContext) (Decision, error)) Guard {
	return Guard{Checker: CheckerFunc(fn)}
}

// Predicate wraps a boolean check. A false result denies without message.
func Predicate(fn func(ctx context.Context, tc *TransitionContext) bool) Guard {
	return GuardFunc(func(ctx context.Context, tc *TransitionContext) (Decision, error) {
		if fn(ctx, tc) {
			return Allow(), nil
		}
		return Deny("", ""), nil
	})
}

// GuardRef references a guard registered under name.
func GuardRef(name string) Guard {
	return Guard{Ref: name}
}

// Label names the guard for logs and errors.
func (g Guard) Label() string {
	if g.Ref != "" {
		return g.Ref
	}
	return "inline"
}

package studenthub

import "fmt"

// Decision is the single outcome the route guard produces for a navigation.
type Decision int

const (
	// DecisionRender renders the protected target.
	DecisionRender Decision = iota
	// DecisionLoading renders a placeholder while auth state is unresolved.
	DecisionLoading
	// DecisionRedirectLogin sends the visitor to the entry screen.
	DecisionRedirectLogin
	// DecisionProfileRecovery offers a manual profile refresh plus a
	// return-to-login escape; the session is valid but the profile is not.
	DecisionProfileRecovery
	// DecisionAccessDenied names the allowed roles and the caller's role.
	DecisionAccessDenied
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	switch d {
	case DecisionRender:
		return "render"
	case DecisionLoading:
		return "loading"
	case DecisionRedirectLogin:
		return "redirect-login"
	case DecisionProfileRecovery:
		return "profile-recovery"
	case DecisionAccessDenied:
		return "access-denied"
	default:
		return "unknown"
	}
}

// Verdict is a Decision plus the context a view needs to render it.
type Verdict struct {
	Decision     Decision
	Message      string
	AllowedRoles []Role
	ActualRole   Role
}

// Evaluate decides what to do for a navigation target that requires one of
// the given roles (none means any authenticated role). The checks run in a
// fixed order; each is terminal:
//
//  1. loading → placeholder, so an in-flight session check is never misread
//     as signed-out;
//  2. no session → redirect to login;
//  3. session without profile → recovery, so an unhydrated profile is never
//     misread as a wrong role;
//  4. role not in the required set → access denied;
//  5. otherwise render.
func Evaluate(state AuthState, requiredRoles ...Role) Verdict {
	if state.Loading {
		return Verdict{Decision: DecisionLoading}
	}

	if !state.IsAuthenticated() {
		return Verdict{
			Decision: DecisionRedirectLogin,
			Message:  state.Message,
		}
	}

	if state.Profile == nil {
		return Verdict{
			Decision: DecisionProfileRecovery,
			Message:  "Could not load your profile",
		}
	}

	if len(requiredRoles) > 0 && !RolesInclude(requiredRoles, state.Profile.Role) {
		return Verdict{
			Decision:     DecisionAccessDenied,
			AllowedRoles: requiredRoles,
			ActualRole:   state.Profile.Role,
			Message: fmt.Sprintf(
				"This page requires the %s role; you are signed in as %s",
				RoleNames(requiredRoles),
				state.Profile.Role,
			),
		}
	}

	return Verdict{Decision: DecisionRender}
}

// DefaultRouteRoles is the role requirement per protected view. An empty
// requirement means any authenticated role may enter.
var DefaultRouteRoles = map[string][]Role{
	"/dashboard":   nil,
	"/students":    nil,
	"/attendance":  nil,
	"/performance": nil,
	"/courses":     nil,
	"/users":       {RoleAdmin},
}

// EvaluateRoute looks the path up in DefaultRouteRoles and evaluates it.
// Unknown paths are treated as requiring any authenticated role.
func EvaluateRoute(state AuthState, path string) Verdict {
	return Evaluate(state, DefaultRouteRoles[path]...)
}

// MenuEntries returns the navigation entries a role may see, derived from the
// same permission table the guard consults.
func MenuEntries(role Role) []string {
	entries := []string{"/dashboard", "/students", "/attendance", "/performance", "/courses"}
	if role.Can(PermManageUsers) {
		entries = append(entries, "/users")
	}
	return entries
}

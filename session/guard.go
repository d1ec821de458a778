package session

// Redirect targets of a denied guard decision.
const (
	RedirectLogin           = "login"
	RedirectProfileCreation = "profile-creation"
)

// Decision is what a protected view does for a gate state. At most one of
// Allow, Wait and Redirect is set.
type Decision struct {
	Allow    bool
	Wait     bool
	Redirect string
}

// Denied reports whether the decision sends the caller elsewhere.
func (d Decision) Denied() bool {
	return d.Redirect != ""
}

// Guard maps a gate state to the route decision.
func Guard(state State) Decision {
	switch state {
	case StateResolvedPresent:
		return Decision{Allow: true}
	case StateResolving:
		return Decision{Wait: true}
	case StateResolvedAbsent:
		return Decision{Redirect: RedirectProfileCreation}
	default:
		return Decision{Redirect: RedirectLogin}
	}
}

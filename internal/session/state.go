package session

// State is where the operator identity is in its lifecycle.
//
// StateUnavailable means app id, app hash or phone are missing and the
// identity is never started. StateDegraded means a login was needed but
// could not complete, typically because nobody was there to type the code.
type State string

const (
	StateNoSession   State = "no_session"
	StateUntested    State = "untested"
	StateValid       State = "valid"
	StateInvalid     State = "invalid"
	StateUnavailable State = "unavailable"
	StateDegraded    State = "degraded"
)

// Usable reports whether the identity can send and receive messages.
func (s State) Usable() bool {
	return s == StateValid
}

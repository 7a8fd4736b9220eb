package camera

// RecoveryStrategy decides whether a camera that vanished mid-operation
// is worth reconnecting. The camera invokes it after a disconnect-class
// failure; a true return triggers one reconnect and one retry of the
// original operation. Strategies must not block for long; they run on
// the failing capture's call path.
type RecoveryStrategy interface {
	AttemptRecovery(id int) bool
}

// NullRecoveryStrategy declines every recovery. This is the default:
// recovery is opt-in.
type NullRecoveryStrategy struct{}

func (NullRecoveryStrategy) AttemptRecovery(int) bool { return false }

// RecoveryFunc adapts a function to the RecoveryStrategy interface.
type RecoveryFunc func(id int) bool

func (f RecoveryFunc) AttemptRecovery(id int) bool { return f(id) }

package auth

// Observer receives admission outcomes, typically for metrics.
type Observer interface {
	TokenIssued(sessionCreated bool)
	Admitted(requirement Requirement)
	Denied(operation string, reason Reason)
	LoginSucceeded()
	RotationConflict()
}

type nopObserver struct{}

func (nopObserver) TokenIssued(bool) {}
func (nopObserver) Admitted(Requirement) {}
func (nopObserver) Denied(string, Reason) {}
func (nopObserver) LoginSucceeded() {}
func (nopObserver) RotationConflict() {}

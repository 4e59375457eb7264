package sessions

import (
	"context"
	"time"
)

// Repo defines the interface for session storage operations.
// Implementations must be safe for concurrent use; Rotate and SetCSRFToken
// must be atomic per session identifier.
type Repo interface {
	// Create stores a new session, failing with ErrSessionExists on an id clash
	Create(ctx context.Context, session *Session) error

	// Get retrieves a copy of a session, failing with ErrSessionNotFound
	Get(ctx context.Context, sessionID string) (*Session, error)

	// SetCSRFToken replaces the current token of an existing session
	SetCSRFToken(ctx context.Context, sessionID, csrfToken string) error

	// Touch records activity on an existing session
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// Rotate replaces oldID with next in one step. It only succeeds while oldID
	// exists, is valid and still carries expectedToken; otherwise nothing changes
	// and ErrSessionNotFound or ErrRotationConflict is returned.
	Rotate(ctx context.Context, oldID, expectedToken string, next *Session) error

	// Delete removes a session; deleting a missing session is not an error
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired removes sessions expired at now and reports how many went
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

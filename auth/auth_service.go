package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-login-server/auth/sessions"
	apperrors "github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/jrsteele09/go-login-server/token"
	"github.com/jrsteele09/go-login-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxSessionAge = 30 * time.Minute

	// dummySecretLength sizes the random secret behind the decoy hash
	dummySecretLength = 24
)

// Repos holds all repository dependencies for the AdmissionService
type Repos struct {
	Users    users.UserRepo // Repository for user data
	Sessions sessions.Repo  // Repository for session data
}

// Decision describes an admitted request.
type Decision struct {
	Session *sessions.Session // nil for Public requirements
}

// Login is the outcome of a successful authentication.
type Login struct {
	Principal users.Principal
	Session   *sessions.Session // The rotated session
	Token     token.CSRFToken   // The token bound to the rotated session
}

// AdmissionService decides whether requests may proceed, based on session
// state and the CSRF token presented with them.
type AdmissionService struct {
	repos                  Repos
	tokens                 token.Generator
	names                  token.Names
	maxSessionAge          time.Duration
	rotateOnBadCredentials bool
	observer               Observer
	nowTime                func() time.Time
	dummyHash              string // Compared against for unknown logins
}

// AdmissionServiceOption defines a function type to modify the AdmissionService instance.
type AdmissionServiceOption func(*AdmissionService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AdmissionServiceOption {
	return func(as *AdmissionService) {
		as.nowTime = nowFunc
	}
}

// WithTokenGenerator replaces the source of token values.
func WithTokenGenerator(gen token.Generator) AdmissionServiceOption {
	return func(as *AdmissionService) {
		as.tokens = gen
	}
}

// WithTokenNames sets the header and parameter names advertised with each token.
func WithTokenNames(names token.Names) AdmissionServiceOption {
	return func(as *AdmissionService) {
		as.names = names
	}
}

func WithMaxSessionAge(age time.Duration) AdmissionServiceOption {
	return func(as *AdmissionService) {
		if age > 0 {
			as.maxSessionAge = age
		}
	}
}

// WithRotateOnBadCredentials controls whether a failed login replaces the
// session's CSRF token.
func WithRotateOnBadCredentials(rotate bool) AdmissionServiceOption {
	return func(as *AdmissionService) {
		as.rotateOnBadCredentials = rotate
	}
}

func WithObserver(observer Observer) AdmissionServiceOption {
	return func(as *AdmissionService) {
		if observer != nil {
			as.observer = observer
		}
	}
}

// NewAdmissionService initializes a new AdmissionService with required dependencies.
func NewAdmissionService(repos Repos, options ...AdmissionServiceOption) (*AdmissionService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAdmissionService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAdmissionService] Sessions repo is required")
	}

	as := &AdmissionService{
		repos:                  repos,
		tokens:                 token.RandomGenerator{},
		names:                  token.DefaultNames(),
		maxSessionAge:          DefaultMaxSessionAge,
		rotateOnBadCredentials: true,
		observer:               nopObserver{},
		nowTime:                time.Now,
	}

	for _, opt := range options {
		opt(as)
	}

	secret, err := token.RandomString(dummySecretLength)
	if err != nil {
		return nil, errors.Wrap(err, "[NewAdmissionService] dummy secret")
	}
	if as.dummyHash, err = users.HashPassword(secret); err != nil {
		return nil, errors.Wrap(err, "[NewAdmissionService] dummy hash")
	}

	return as, nil
}

// TokenNames returns the header and parameter names tokens are accepted under.
func (as *AdmissionService) TokenNames() token.Names {
	return as.names
}

// MaxSessionAge returns the lifetime given to new sessions.
func (as *AdmissionService) MaxSessionAge() time.Duration {
	return as.maxSessionAge
}

// IssueToken generates a fresh CSRF token for sessionID, superseding any
// earlier token. When sessionID names no live session an anonymous session is
// created first and returned, so the caller can hand its id to the client.
func (as *AdmissionService) IssueToken(ctx context.Context, sessionID string) (token.CSRFToken, *sessions.Session, error) {
	now := as.nowTime()

	current, err := as.lookup(ctx, sessionID, now)
	if err != nil {
		return token.CSRFToken{}, nil, errors.Wrap(err, "[AdmissionService.IssueToken] lookup")
	}

	if current != nil {
		tok, err := token.Issue(as.tokens, as.names, current.ID)
		if err != nil {
			return token.CSRFToken{}, nil, errors.Wrap(err, "[AdmissionService.IssueToken] token.Issue")
		}
		err = as.repos.Sessions.SetCSRFToken(ctx, current.ID, tok.Token)
		if err == nil {
			as.observer.TokenIssued(false)
			return tok, nil, nil
		}
		if !errors.Is(err, apperrors.ErrSessionNotFound) {
			return token.CSRFToken{}, nil, errors.Wrap(err, "[AdmissionService.IssueToken] SetCSRFToken")
		}
		// Deleted between lookup and update; fall through to a new session
	}

	created, tok, err := as.newSession(now, nil)
	if err != nil {
		return token.CSRFToken{}, nil, errors.Wrap(err, "[AdmissionService.IssueToken] newSession")
	}
	if err := as.repos.Sessions.Create(ctx, created); err != nil {
		return token.CSRFToken{}, nil, errors.Wrap(err, "[AdmissionService.IssueToken] sessionRepo.Create")
	}

	as.observer.TokenIssued(true)
	return tok, created.Clone(), nil
}

// HasLiveSession reports whether sessionID names a live session, that is
// whether IssueToken would reuse it rather than create one.
func (as *AdmissionService) HasLiveSession(ctx context.Context, sessionID string) (bool, error) {
	current, err := as.lookup(ctx, sessionID, as.nowTime())
	if err != nil {
		return false, errors.Wrap(err, "[AdmissionService.HasLiveSession] lookup")
	}
	return current != nil, nil
}

// Authenticate verifies credentials on behalf of the session presented with
// them. Checks run in order and stop at the first failure: the session must be
// live, the token must be that session's current one and the credentials must
// be correct. On success the session is replaced by a new one carrying the
// principal, under a new identifier and a new token.
func (as *AdmissionService) Authenticate(ctx context.Context, p Presented, creds Credentials) (Login, error) {
	const op = "authenticate"
	now := as.nowTime()

	if p.SessionID == "" {
		return Login{}, as.deny(op, NoSession, nil)
	}
	current, err := as.lookup(ctx, p.SessionID, now)
	if err != nil {
		return Login{}, errors.Wrap(err, "[AdmissionService.Authenticate] lookup")
	}
	if current == nil {
		return Login{}, as.deny(op, NoSession, nil)
	}

	if !token.Matches(current.CSRFToken, p.Token) {
		return Login{}, as.deny(op, CsrfInvalid, nil)
	}

	user, err := as.verifyCredentials(ctx, creds)
	if err != nil {
		if d := DenialOf(err); d != nil && as.rotateOnBadCredentials {
			return Login{}, as.rotateAfterBadCredentials(ctx, current.ID, d)
		}
		return Login{}, err
	}

	principal := user.Principal()
	next, tok, err := as.newSession(now, &principal)
	if err != nil {
		return Login{}, errors.Wrap(err, "[AdmissionService.Authenticate] newSession")
	}

	if err := as.repos.Sessions.Rotate(ctx, current.ID, current.CSRFToken, next); err != nil {
		if errors.Is(err, apperrors.ErrRotationConflict) || errors.Is(err, apperrors.ErrSessionNotFound) {
			as.observer.RotationConflict()
			return Login{}, as.deny(op, NoSession, err)
		}
		return Login{}, errors.Wrap(err, "[AdmissionService.Authenticate] sessionRepo.Rotate")
	}

	if err := as.repos.Users.SetLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user", user.LoginName).Msg("failed to record last login")
	}

	as.observer.LoginSucceeded()
	log.Info().Str("user", principal.LoginName).Msg("login succeeded")

	return Login{Principal: principal, Session: next.Clone(), Token: tok}, nil
}

// Admit decides whether a request may reach a resource with the given
// requirement. Safe methods need only a live session; anything else must
// also present the session's current token.
func (as *AdmissionService) Admit(ctx context.Context, p Presented, method string, requirement Requirement) (Decision, error) {
	const op = "admit"
	if requirement == Public {
		as.observer.Admitted(requirement)
		return Decision{}, nil
	}

	now := as.nowTime()
	if p.SessionID == "" {
		return Decision{}, as.deny(op, NoSession, nil)
	}
	current, err := as.lookup(ctx, p.SessionID, now)
	if err != nil {
		return Decision{}, errors.Wrap(err, "[AdmissionService.Admit] lookup")
	}
	if current == nil {
		return Decision{}, as.deny(op, SessionExpired, nil)
	}

	if !IsSafeMethod(method) {
		if p.Token == "" {
			return Decision{}, as.deny(op, CsrfMissing, nil)
		}
		if !token.Matches(current.CSRFToken, p.Token) {
			return Decision{}, as.deny(op, CsrfInvalid, nil)
		}
	}

	if requirement == Authenticated && current.Anonymous() {
		return Decision{}, as.deny(op, Unauthenticated, nil)
	}

	if err := as.repos.Sessions.Touch(ctx, current.ID, now); err != nil {
		log.Debug().Err(err).Msg("failed to touch session")
	}
	current.LastSeenAt = now

	as.observer.Admitted(requirement)
	return Decision{Session: current}, nil
}

// Logout ends the presented session. It is a state-changing request and so
// needs the session's current token.
func (as *AdmissionService) Logout(ctx context.Context, p Presented) error {
	decision, err := as.Admit(ctx, p, http.MethodPost, Session)
	if err != nil {
		return err
	}
	if err := as.repos.Sessions.Delete(ctx, decision.Session.ID); err != nil {
		return errors.Wrap(err, "[AdmissionService.Logout] sessionRepo.Delete")
	}
	if decision.Session.Principal != nil {
		log.Info().Str("user", decision.Session.Principal.LoginName).Msg("logout")
	}
	return nil
}

// CleanupExpiredSessions deletes every session past its expiry.
func (as *AdmissionService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	removed, err := as.repos.Sessions.DeleteExpired(ctx, as.nowTime())
	if err != nil {
		return removed, errors.Wrap(err, "[AdmissionService.CleanupExpiredSessions] DeleteExpired")
	}
	return removed, nil
}

// lookup returns the live session for id, or nil when there is none. Expired
// or invalidated records found on the way are deleted.
func (as *AdmissionService) lookup(ctx context.Context, id string, now time.Time) (*sessions.Session, error) {
	if id == "" {
		return nil, nil
	}
	s, err := as.repos.Sessions.Get(ctx, id)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.Live(now) {
		if err := as.repos.Sessions.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Msg("failed to delete dead session")
		}
		return nil, nil
	}
	return s, nil
}

func (as *AdmissionService) newSession(now time.Time, principal *users.Principal) (*sessions.Session, token.CSRFToken, error) {
	id, err := sessions.GenerateID()
	if err != nil {
		return nil, token.CSRFToken{}, err
	}
	tok, err := token.Issue(as.tokens, as.names, id)
	if err != nil {
		return nil, token.CSRFToken{}, err
	}
	return &sessions.Session{
		ID:         id,
		CreatedAt:  now,
		ExpiresAt:  now.Add(as.maxSessionAge),
		LastSeenAt: now,
		Principal:  principal,
		CSRFToken:  tok.Token,
		Valid:      true,
	}, tok, nil
}

// verifyCredentials returns the user behind creds or a BadCredentials denial.
// Every failing path performs one bcrypt comparison.
func (as *AdmissionService) verifyCredentials(ctx context.Context, creds Credentials) (*users.User, error) {
	const op = "authenticate"

	if err := creds.Validate(); err != nil {
		users.CheckPasswordHash(creds.Secret, as.dummyHash)
		return nil, as.deny(op, BadCredentials, err)
	}

	user, err := as.repos.Users.FindByLoginNameExact(ctx, creds.LoginName)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		users.CheckPasswordHash(creds.Secret, as.dummyHash)
		return nil, as.deny(op, BadCredentials, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "[AdmissionService.Authenticate] userRepo.FindByLoginNameExact")
	}

	if !users.CheckPasswordHash(creds.Secret, user.PasswordHash) || user.Blocked {
		return nil, as.deny(op, BadCredentials, nil)
	}
	return user, nil
}

// rotateAfterBadCredentials replaces the session's token and attaches the new
// one to the denial. A failed rotation leaves the denial unchanged.
func (as *AdmissionService) rotateAfterBadCredentials(ctx context.Context, sessionID string, d *Denial) error {
	tok, err := token.Issue(as.tokens, as.names, sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to issue token after bad credentials")
		return d
	}
	if err := as.repos.Sessions.SetCSRFToken(ctx, sessionID, tok.Token); err != nil {
		log.Warn().Err(err).Msg("failed to rotate token after bad credentials")
		return d
	}
	as.observer.TokenIssued(false)
	d.Token = &tok
	return d
}

func (as *AdmissionService) deny(operation string, reason Reason, err error) *Denial {
	as.observer.Denied(operation, reason)
	log.Debug().Str("op", operation).Str("reason", reason.String()).Msg("request denied")
	return &Denial{Reason: reason, Err: err}
}

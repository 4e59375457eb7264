package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-login-server/auth"
	"github.com/jrsteele09/go-login-server/auth/sessions"
	fakesessionrepo "github.com/jrsteele09/go-login-server/auth/sessions/repofakes"
	apperrors "github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/jrsteele09/go-login-server/token"
	"github.com/jrsteele09/go-login-server/users"
	fakeuserrepo "github.com/jrsteele09/go-login-server/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	adminLogin    = "admin"
	adminPassword = "admin"
)

// clock is a settable time source shared by the service under test
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingObserver counts observer callbacks
type recordingObserver struct {
	mu        sync.Mutex
	issued    int
	created   int
	admitted  int
	denied    map[auth.Reason]int
	logins    int
	conflicts int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{denied: map[auth.Reason]int{}}
}

func (o *recordingObserver) TokenIssued(created bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issued++
	if created {
		o.created++
	}
}

func (o *recordingObserver) Admitted(auth.Requirement) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.admitted++
}

func (o *recordingObserver) Denied(_ string, reason auth.Reason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.denied[reason]++
}

func (o *recordingObserver) LoginSucceeded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins++
}

func (o *recordingObserver) RotationConflict() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conflicts++
}

// testFixture holds all test dependencies
type testFixture struct {
	userRepo    users.UserRepo
	sessionRepo sessions.Repo
	clock       *clock
	observer    *recordingObserver
	service     *auth.AdmissionService
}

// setupTestFixture creates a new test fixture with an admin user already stored
func setupTestFixture(t *testing.T, options ...auth.AdmissionServiceOption) *testFixture {
	t.Helper()

	ur := fakeuserrepo.NewFakeUserRepo()
	sr := fakesessionrepo.NewFakeSessionRepo(0, time.Hour)
	c := &clock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	obs := newRecordingObserver()

	opts := append([]auth.AdmissionServiceOption{
		auth.WithNowTime(c.Now),
		auth.WithObserver(obs),
	}, options...)

	service, err := auth.NewAdmissionService(auth.Repos{Users: ur, Sessions: sr}, opts...)
	require.NoError(t, err)

	f := &testFixture{
		userRepo:    ur,
		sessionRepo: sr,
		clock:       c,
		observer:    obs,
		service:     service,
	}
	f.createTestUser(t, adminLogin, adminPassword, false)
	return f
}

// createTestUser creates and stores a test user
func (f *testFixture) createTestUser(t *testing.T, login, password string, blocked bool) {
	t.Helper()

	hash, err := users.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(context.Background(), &users.User{
		LoginName:    login,
		DisplayName:  "Test " + login,
		PasswordHash: hash,
		Roles:        []users.RoleType{users.RoleUser},
		Blocked:      blocked,
	}))
}

// anonymousSession issues a token on a new session and returns both
func (f *testFixture) anonymousSession(t *testing.T) (*sessions.Session, token.CSRFToken) {
	t.Helper()

	tok, created, err := f.service.IssueToken(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, created)
	return created, tok
}

// login authenticates as admin and returns the result
func (f *testFixture) login(t *testing.T) auth.Login {
	t.Helper()

	s, tok := f.anonymousSession(t)
	login, err := f.service.Authenticate(context.Background(),
		auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	require.NoError(t, err)
	return login
}

func requireReason(t *testing.T, err error, want auth.Reason) {
	t.Helper()

	require.Error(t, err)
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok, "expected a denial, got %v", err)
	require.Equal(t, want, reason)
}

func TestNewAdmissionService_RequiresRepos(t *testing.T) {
	_, err := auth.NewAdmissionService(auth.Repos{Sessions: fakesessionrepo.NewFakeSessionRepo(0, 0)})
	require.Error(t, err)

	_, err = auth.NewAdmissionService(auth.Repos{Users: fakeuserrepo.NewFakeUserRepo()})
	require.Error(t, err)
}

func TestIssueToken_CreatesAnonymousSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	tok, created, err := f.service.IssueToken(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, created)
	require.True(t, created.Anonymous())
	require.Equal(t, created.ID, tok.SessionID())
	require.Equal(t, token.DefaultHeaderName, tok.HeaderName)
	require.Equal(t, token.DefaultParameterName, tok.ParameterName)
	require.Equal(t, f.clock.Now().Add(auth.DefaultMaxSessionAge), created.ExpiresAt)

	stored, err := f.sessionRepo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, tok.Token, stored.CSRFToken)

	// Unknown ids get a new session too, never the presented id
	_, other, err := f.service.IssueToken(ctx, "unknown-session")
	require.NoError(t, err)
	require.NotNil(t, other)
	require.NotEqual(t, "unknown-session", other.ID)
}

func TestIssueToken_MostRecentTokenValidates(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	s, first := f.anonymousSession(t)

	second, created, err := f.service.IssueToken(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, created, "an existing session must be reused")
	require.NotEqual(t, first.Token, second.Token)

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: s.ID, Token: first.Token}, "POST", auth.Session)
	requireReason(t, err, auth.CsrfInvalid)

	decision, err := f.service.Admit(ctx, auth.Presented{SessionID: s.ID, Token: second.Token}, "POST", auth.Session)
	require.NoError(t, err)
	require.Equal(t, s.ID, decision.Session.ID)
	require.Equal(t, 1, f.observer.created)
	require.Equal(t, 2, f.observer.issued)
}

func TestIssueToken_ExpiredSessionReplaced(t *testing.T) {
	f := setupTestFixture(t, auth.WithMaxSessionAge(time.Minute))
	ctx := context.Background()
	s, _ := f.anonymousSession(t)

	f.clock.Advance(2 * time.Minute)

	_, created, err := f.service.IssueToken(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotEqual(t, s.ID, created.ID)

	_, err = f.sessionRepo.Get(ctx, s.ID)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestHasLiveSession(t *testing.T) {
	f := setupTestFixture(t, auth.WithMaxSessionAge(time.Minute))
	ctx := context.Background()
	s, _ := f.anonymousSession(t)

	live, err := f.service.HasLiveSession(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, live)

	for _, id := range []string{"", "unknown"} {
		live, err = f.service.HasLiveSession(ctx, id)
		require.NoError(t, err)
		require.False(t, live)
	}

	f.clock.Advance(2 * time.Minute)
	live, err = f.service.HasLiveSession(ctx, s.ID)
	require.NoError(t, err)
	require.False(t, live)
}

func TestAuthenticate_WithoutSessionDenied(t *testing.T) {
	f := setupTestFixture(t)
	_, tok := f.anonymousSession(t)

	_, err := f.service.Authenticate(context.Background(),
		auth.Presented{Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	requireReason(t, err, auth.NoSession)

	_, err = f.service.Authenticate(context.Background(),
		auth.Presented{SessionID: "unknown", Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	requireReason(t, err, auth.NoSession)
}

func TestAuthenticate_TokenFromOtherSessionDenied(t *testing.T) {
	f := setupTestFixture(t)
	_, tokA := f.anonymousSession(t)
	sessionB, _ := f.anonymousSession(t)

	_, err := f.service.Authenticate(context.Background(),
		auth.Presented{SessionID: sessionB.ID, Token: tokA.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	requireReason(t, err, auth.CsrfInvalid)
}

func TestAuthenticate_MissingTokenDenied(t *testing.T) {
	f := setupTestFixture(t)
	s, tok := f.anonymousSession(t)

	_, err := f.service.Authenticate(context.Background(),
		auth.Presented{SessionID: s.ID},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	requireReason(t, err, auth.CsrfInvalid)

	// CSRF failures leave the token in place
	stored, err := f.sessionRepo.Get(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, tok.Token, stored.CSRFToken)
}

func TestAuthenticate_Success(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	s, tok := f.anonymousSession(t)

	login, err := f.service.Authenticate(ctx,
		auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	require.NoError(t, err)

	require.Equal(t, adminLogin, login.Principal.LoginName)
	require.NotEqual(t, s.ID, login.Session.ID)
	require.NotEqual(t, tok.Token, login.Token.Token)
	require.Equal(t, login.Session.ID, login.Token.SessionID())
	require.False(t, login.Session.Anonymous())

	stored, err := f.sessionRepo.Get(ctx, login.Session.ID)
	require.NoError(t, err)
	require.Equal(t, adminLogin, stored.Principal.LoginName)
	require.Equal(t, login.Token.Token, stored.CSRFToken)

	user, err := f.userRepo.FindByLoginNameExact(ctx, adminLogin)
	require.NoError(t, err)
	require.Equal(t, f.clock.Now(), user.LastLogin)
	require.Equal(t, 1, f.observer.logins)
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds auth.Credentials
	}{
		{name: "wrong secret", creds: auth.Credentials{LoginName: adminLogin, Secret: "wrong"}},
		{name: "unknown login", creds: auth.Credentials{LoginName: "nobody", Secret: adminPassword}},
		{name: "empty login", creds: auth.Credentials{Secret: adminPassword}},
		{name: "empty secret", creds: auth.Credentials{LoginName: adminLogin}},
		{name: "blocked user", creds: auth.Credentials{LoginName: "blocked", Secret: "secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.createTestUser(t, "blocked", "secret", true)
			ctx := context.Background()
			s, tok := f.anonymousSession(t)

			_, err := f.service.Authenticate(ctx, auth.Presented{SessionID: s.ID, Token: tok.Token}, tt.creds)
			requireReason(t, err, auth.BadCredentials)

			// The token was rotated and the old one no longer validates
			d := auth.DenialOf(err)
			require.NotNil(t, d.Token)
			require.NotEqual(t, tok.Token, d.Token.Token)

			stored, err := f.sessionRepo.Get(ctx, s.ID)
			require.NoError(t, err)
			require.Equal(t, d.Token.Token, stored.CSRFToken)
			require.True(t, stored.Anonymous())
		})
	}
}

func TestAuthenticate_BadCredentialsWithoutRotation(t *testing.T) {
	f := setupTestFixture(t, auth.WithRotateOnBadCredentials(false))
	ctx := context.Background()
	s, tok := f.anonymousSession(t)

	_, err := f.service.Authenticate(ctx,
		auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: "wrong"})
	requireReason(t, err, auth.BadCredentials)
	require.Nil(t, auth.DenialOf(err).Token)

	// The same token can be used for a retry
	_, err = f.service.Authenticate(ctx,
		auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	require.NoError(t, err)
}

func TestAuthenticate_OldSessionDeadAfterLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	s, tok := f.anonymousSession(t)

	_, err := f.service.Authenticate(ctx,
		auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	require.NoError(t, err)

	// A fresh token requested with the old cookie lands on a new session
	fresh, created, err := f.service.IssueToken(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, created)

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: s.ID, Token: fresh.Token}, "POST", auth.Authenticated)
	requireReason(t, err, auth.SessionExpired)

	_, err = f.service.Authenticate(ctx,
		auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	requireReason(t, err, auth.NoSession)
}

func TestAuthenticate_OldTokenInvalidAfterLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	s, tok := f.anonymousSession(t)

	login, err := f.service.Authenticate(ctx,
		auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	require.NoError(t, err)

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID, Token: tok.Token}, "POST", auth.Authenticated)
	requireReason(t, err, auth.CsrfInvalid)

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID, Token: login.Token.Token}, "POST", auth.Authenticated)
	require.NoError(t, err)
}

func TestAuthenticate_ConcurrentLoginsSingleWinner(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	s, tok := f.anonymousSession(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Authenticate(ctx,
				auth.Presented{SessionID: s.ID, Token: tok.Token},
				auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireReason(t, err, auth.NoSession)
	}
	require.Equal(t, 1, wins)
}

func TestAdmit_Public(t *testing.T) {
	f := setupTestFixture(t)

	decision, err := f.service.Admit(context.Background(), auth.Presented{}, "POST", auth.Public)
	require.NoError(t, err)
	require.Nil(t, decision.Session)
}

func TestAdmit_SessionStates(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Admit(ctx, auth.Presented{}, "GET", auth.Session)
	requireReason(t, err, auth.NoSession)

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: "unknown"}, "GET", auth.Session)
	requireReason(t, err, auth.SessionExpired)

	s, _ := f.anonymousSession(t)
	decision, err := f.service.Admit(ctx, auth.Presented{SessionID: s.ID}, "GET", auth.Session)
	require.NoError(t, err)
	require.True(t, decision.Session.Anonymous())

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: s.ID}, "GET", auth.Authenticated)
	requireReason(t, err, auth.Unauthenticated)
}

func TestAdmit_MissingTokenDistinctFromInvalid(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	login := f.login(t)

	_, err := f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID}, "POST", auth.Authenticated)
	requireReason(t, err, auth.CsrfMissing)

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID, Token: "forged"}, "POST", auth.Authenticated)
	requireReason(t, err, auth.CsrfInvalid)

	for _, method := range []string{"GET", "HEAD", "OPTIONS", "TRACE"} {
		decision, err := f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID}, method, auth.Authenticated)
		require.NoError(t, err, method)
		require.Equal(t, adminLogin, decision.Session.Principal.LoginName)
	}
}

func TestAdmit_ExpiredSession(t *testing.T) {
	f := setupTestFixture(t, auth.WithMaxSessionAge(10*time.Minute))
	ctx := context.Background()
	login := f.login(t)

	f.clock.Advance(5 * time.Minute)
	decision, err := f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID}, "GET", auth.Authenticated)
	require.NoError(t, err)
	require.Equal(t, f.clock.Now(), decision.Session.LastSeenAt)

	f.clock.Advance(5 * time.Minute)
	_, err = f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID}, "GET", auth.Authenticated)
	requireReason(t, err, auth.SessionExpired)

	_, err = f.sessionRepo.Get(ctx, login.Session.ID)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	login := f.login(t)

	err := f.service.Logout(ctx, auth.Presented{SessionID: login.Session.ID})
	requireReason(t, err, auth.CsrfMissing)

	require.NoError(t, f.service.Logout(ctx, auth.Presented{SessionID: login.Session.ID, Token: login.Token.Token}))

	_, err = f.service.Admit(ctx, auth.Presented{SessionID: login.Session.ID}, "GET", auth.Authenticated)
	requireReason(t, err, auth.SessionExpired)
}

func TestCleanupExpiredSessions(t *testing.T) {
	f := setupTestFixture(t, auth.WithMaxSessionAge(time.Minute))
	ctx := context.Background()
	f.anonymousSession(t)
	f.anonymousSession(t)

	removed, err := f.service.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)

	f.clock.Advance(time.Hour)
	removed, err = f.service.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
}

func TestWithTokenNames(t *testing.T) {
	names := token.Names{HeaderName: "X-CSRF", ParameterName: "csrf"}
	f := setupTestFixture(t, auth.WithTokenNames(names))

	_, tok := f.anonymousSession(t)
	require.Equal(t, "X-CSRF", tok.HeaderName)
	require.Equal(t, "csrf", tok.ParameterName)
	require.Equal(t, names, f.service.TokenNames())
}

func TestIssueToken_GeneratorFailure(t *testing.T) {
	failing := token.GeneratorFunc(func() (string, error) { return "", errors.New("no entropy") })
	f := setupTestFixture(t, auth.WithTokenGenerator(failing))

	_, _, err := f.service.IssueToken(context.Background(), "")
	require.Error(t, err)
	require.False(t, auth.IsDenial(err))
}

// failingUserRepo fails every lookup
type failingUserRepo struct {
	users.UserRepo
}

func (failingUserRepo) FindByLoginNameExact(context.Context, string) (*users.User, error) {
	return nil, errors.New("database unavailable")
}

func TestAuthenticate_UserStoreFailureIsNotDenial(t *testing.T) {
	sr := fakesessionrepo.NewFakeSessionRepo(0, 0)
	service, err := auth.NewAdmissionService(auth.Repos{Users: failingUserRepo{fakeuserrepo.NewFakeUserRepo()}, Sessions: sr})
	require.NoError(t, err)
	ctx := context.Background()

	tok, s, err := service.IssueToken(ctx, "")
	require.NoError(t, err)

	_, err = service.Authenticate(ctx, auth.Presented{SessionID: s.ID, Token: tok.Token},
		auth.Credentials{LoginName: adminLogin, Secret: adminPassword})
	require.ErrorContains(t, err, "database unavailable")
	require.False(t, auth.IsDenial(err))
}

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/dmitrijs2005/memberauth/internal/logging"
	"github.com/dmitrijs2005/memberauth/internal/server/auth"
	"github.com/dmitrijs2005/memberauth/internal/server/models"
	"github.com/dmitrijs2005/memberauth/internal/server/password"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "test@gmail.com"
	testPassword = "test123!"
)

var errBoom = errors.New("boom")

// countingMembers wraps the in-memory store and records every call so tests
// can assert that malformed input never reaches storage.
type countingMembers struct {
	*memory.MemberRepository
	mu    sync.Mutex
	calls int

	existsErr error
	findErr   error
	createErr error
}

func (c *countingMembers) hit() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingMembers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	c.hit()
	if c.existsErr != nil {
		return false, c.existsErr
	}
	return c.MemberRepository.ExistsByEmail(ctx, email)
}

func (c *countingMembers) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	c.hit()
	if c.findErr != nil {
		return nil, c.findErr
	}
	return c.MemberRepository.FindByEmail(ctx, email)
}

func (c *countingMembers) Create(ctx context.Context, m *models.Member) (*models.Member, error) {
	c.hit()
	if c.createErr != nil {
		return nil, c.createErr
	}
	return c.MemberRepository.Create(ctx, m)
}

type failingTokens struct {
	*memory.RefreshTokenRepository
	upsertErr error
	rotateErr error
	deleteErr error
}

func (f *failingTokens) Upsert(ctx context.Context, t *models.RefreshToken) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.RefreshTokenRepository.Upsert(ctx, t)
}

func (f *failingTokens) Rotate(ctx context.Context, old string, next *models.RefreshToken) (bool, error) {
	if f.rotateErr != nil {
		return false, f.rotateErr
	}
	return f.RefreshTokenRepository.Rotate(ctx, old, next)
}

func (f *failingTokens) DeleteIfCurrent(ctx context.Context, id, token string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.RefreshTokenRepository.DeleteIfCurrent(ctx, id, token)
}

// countingHasher records how many comparisons reach the real hasher.
type countingHasher struct {
	password.Hasher
	mu       sync.Mutex
	compares int
}

func (h *countingHasher) Compare(hash, plain string) (bool, error) {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.Hasher.Compare(hash, plain)
}

type fixture struct {
	svc     *AuthService
	members *countingMembers
	tokens  *failingTokens
	hasher  *countingHasher
	issuer  *auth.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureTTL(t, 15*time.Minute, time.Hour)
}

func newFixtureTTL(t *testing.T, accessTTL, refreshTTL time.Duration) *fixture {
	t.Helper()

	issuer, err := auth.NewIssuer([]byte("test-secret"), accessTTL, refreshTTL)
	require.NoError(t, err)
	bc, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	hasher := &countingHasher{Hasher: bc}

	m := &countingMembers{MemberRepository: memory.NewMemberRepository()}
	rt := &failingTokens{RefreshTokenRepository: memory.NewRefreshTokenRepository()}

	return &fixture{
		svc:     NewAuthService(m, rt, issuer, hasher, logging.Nop()),
		members: m,
		tokens:  rt,
		hasher:  hasher,
		issuer:  issuer,
	}
}

func (f *fixture) join(t *testing.T) {
	t.Helper()
	o, err := f.svc.Join(context.Background(), Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.True(t, o.OK(), "join: %+v", o)
}

func (f *fixture) login(t *testing.T) *auth.TokenPair {
	t.Helper()
	o, err := f.svc.Login(context.Background(), Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.True(t, o.OK(), "login: %+v", o)
	require.NotNil(t, o.Tokens)
	return o.Tokens
}

func TestJoin_Success(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Join(context.Background(), Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, o.Code)
	assert.Equal(t, MsgSuccess, o.Message)
	assert.Nil(t, o.Tokens)
	assert.Equal(t, http.StatusOK, o.HTTPStatus())

	m, err := f.members.MemberRepository.FindByEmail(context.Background(), testEmail)
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, m.PasswordHash)
	assert.NotEmpty(t, m.ID)
}

func TestJoin_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.join(t)

	o, err := f.svc.Join(context.Background(), Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, o.Code)
	assert.Equal(t, MsgEmailExists, o.Message)
	assert.Equal(t, http.StatusConflict, o.HTTPStatus())

	n, err := f.members.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJoin_CreateRaceIsConflict(t *testing.T) {
	f := newFixture(t)
	f.members.createErr = common.ErrAlreadyExists

	o, err := f.svc.Join(context.Background(), Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, o.Code)
}

func TestJoinAndLogin_MalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		code  OutcomeCode
		msg   string
	}{
		{"bad email", Credentials{Email: "test", Password: testPassword}, OutcomeInvalidEmail, MsgInvalidEmail},
		{"empty email", Credentials{Email: "", Password: testPassword}, OutcomeInvalidEmail, MsgInvalidEmail},
		{"bad email and password", Credentials{Email: "test", Password: "test"}, OutcomeInvalidEmail, MsgInvalidEmail},
		{"short password", Credentials{Email: testEmail, Password: "test"}, OutcomeInvalidPassword, MsgInvalidPassword},
		{"no special char", Credentials{Email: testEmail, Password: "test1234"}, OutcomeInvalidPassword, MsgInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			for _, op := range []func(context.Context, Credentials) (Outcome, error){f.svc.Join, f.svc.Login} {
				o, err := op(context.Background(), tt.creds)
				require.NoError(t, err)
				assert.Equal(t, tt.code, o.Code)
				assert.Equal(t, tt.msg, o.Message)
				assert.Equal(t, http.StatusBadRequest, o.HTTPStatus())
				assert.Nil(t, o.Tokens)
			}
			assert.Zero(t, f.members.calls, "store must not be touched")
		})
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.join(t)

	pair := f.login(t)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := f.svc.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testEmail, claims.Email)

	m, err := f.members.MemberRepository.FindByEmail(context.Background(), testEmail)
	require.NoError(t, err)
	row, err := f.tokens.FindByMember(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, row.Token)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	f := newFixture(t)
	f.join(t)

	wrongPwd, err := f.svc.Login(context.Background(), Credentials{Email: testEmail, Password: "test1234!"})
	require.NoError(t, err)
	unknown, err := f.svc.Login(context.Background(), Credentials{Email: "test1@gmail.com", Password: testPassword})
	require.NoError(t, err)

	assert.Equal(t, wrongPwd, unknown)
	assert.Equal(t, OutcomeNotFound, wrongPwd.Code)
	assert.Equal(t, MsgWrongCredentials, wrongPwd.Message)
	assert.Equal(t, http.StatusNotFound, wrongPwd.HTTPStatus())

	n, err := f.tokens.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogin_UnknownEmailStillComparesHash(t *testing.T) {
	f := newFixture(t)
	f.join(t)

	_, err := f.svc.Login(context.Background(), Credentials{Email: testEmail, Password: "test1234!"})
	require.NoError(t, err)
	require.Equal(t, 1, f.hasher.compares)

	o, err := f.svc.Login(context.Background(), Credentials{Email: "nobody@gmail.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, o.Code)
	assert.Equal(t, 2, f.hasher.compares)

	// the decoy is hashed once, never matched
	o, err = f.svc.Login(context.Background(), Credentials{Email: "nobody@gmail.com", Password: decoyPassword})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, o.Code)
	assert.Equal(t, 3, f.hasher.compares)
}

func TestLogin_TwiceKeepsOneRowAndLatestToken(t *testing.T) {
	f := newFixture(t)
	f.join(t)

	first := f.login(t)
	second := f.login(t)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	n, err := f.tokens.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	o, err := f.svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnauthorized, o.Code)
	assert.Equal(t, MsgInvalidRefreshToken, o.Message)

	o, err = f.svc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
	assert.True(t, o.OK())
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pair := f.login(t)

	o, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, o.OK())
	require.NotNil(t, o.Tokens)
	assert.NotEqual(t, pair.RefreshToken, o.Tokens.RefreshToken)

	// the old token is spent
	o2, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnauthorized, o2.Code)
}

func TestRefresh_RejectsAccessTokenAndGarbage(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pair := f.login(t)

	for _, tok := range []string{pair.AccessToken, "garbage", ""} {
		o, err := f.svc.Refresh(context.Background(), tok)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnauthorized, o.Code)
		assert.Equal(t, MsgInvalidRefreshToken, o.Message)
		assert.Equal(t, http.StatusUnauthorized, o.HTTPStatus())
	}
}

func TestRefresh_Expired(t *testing.T) {
	f := newFixtureTTL(t, time.Minute, -time.Minute)
	f.join(t)
	pair := f.login(t)

	o, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnauthorized, o.Code)
	assert.Equal(t, MsgRefreshTokenExpired, o.Message)
}

func TestRefresh_ForeignSecretRejected(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	f.login(t)

	other, err := auth.NewIssuer([]byte("other-secret"), time.Minute, time.Hour)
	require.NoError(t, err)
	forged, _, err := other.IssueRefreshToken("someone", testEmail)
	require.NoError(t, err)

	o, err := f.svc.Refresh(context.Background(), forged)
	require.NoError(t, err)
	assert.Equal(t, MsgInvalidRefreshToken, o.Message)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pair := f.login(t)

	o, err := f.svc.Logout(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, o.OK())

	n, err := f.tokens.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	o, err = f.svc.Logout(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnauthorized, o.Code)

	o, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnauthorized, o.Code)
}

func TestLogout_SupersededTokenKeepsCurrent(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	first := f.login(t)
	second := f.login(t)

	o, err := f.svc.Logout(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnauthorized, o.Code)

	o, err = f.svc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
	assert.True(t, o.OK())
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pair := f.login(t)

	_, err := f.svc.Authenticate(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	expired := newFixtureTTL(t, -time.Minute, time.Hour)
	expired.join(t)
	p := expired.login(t)
	_, err = expired.svc.Authenticate(context.Background(), p.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestConcurrentJoins_ExactlyOneOK(t *testing.T) {
	f := newFixture(t)

	const workers = 16
	outcomes := make([]Outcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.svc.Join(context.Background(), Credentials{Email: testEmail, Password: testPassword})
		}(i)
	}
	wg.Wait()

	var okCount, conflicts int
	for i := range outcomes {
		require.NoError(t, errs[i])
		switch outcomes[i].Code {
		case OutcomeOK:
			okCount++
		case OutcomeConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, workers-1, conflicts)
}

func TestConcurrentLogins_LastWriteWins(t *testing.T) {
	f := newFixture(t)
	f.join(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Login(context.Background(), Credentials{Email: testEmail, Password: testPassword})
		}()
	}
	wg.Wait()

	n, err := f.tokens.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConcurrentRefresh_SameTokenSpentOnce(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	pair := f.login(t)

	const workers = 16
	outcomes := make([]Outcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.svc.Refresh(context.Background(), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	var winner *auth.TokenPair
	okCount := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i].OK() {
			okCount++
			winner = outcomes[i].Tokens
			continue
		}
		assert.Equal(t, OutcomeUnauthorized, outcomes[i].Code)
		assert.Equal(t, MsgInvalidRefreshToken, outcomes[i].Message)
	}
	require.Equal(t, 1, okCount)

	m, err := f.members.MemberRepository.FindByEmail(context.Background(), testEmail)
	require.NoError(t, err)
	row, err := f.tokens.FindByMember(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, winner.RefreshToken, row.Token)
}

func TestConcurrentRefreshAndLogout_OneWins(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		f.join(t)
		pair := f.login(t)

		var (
			wg               sync.WaitGroup
			refreshed, out   Outcome
			refreshErr, oErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			refreshed, refreshErr = f.svc.Refresh(context.Background(), pair.RefreshToken)
		}()
		go func() {
			defer wg.Done()
			out, oErr = f.svc.Logout(context.Background(), pair.RefreshToken)
		}()
		wg.Wait()

		require.NoError(t, refreshErr)
		require.NoError(t, oErr)
		require.NotEqual(t, refreshed.OK(), out.OK(), "exactly one of refresh and logout may succeed")

		n, err := f.tokens.Count(context.Background())
		require.NoError(t, err)
		if out.OK() {
			assert.Zero(t, n)
		} else {
			assert.Equal(t, int64(1), n)
		}
	}
}

func TestLogout_DoesNotRemoveNewerLogin(t *testing.T) {
	f := newFixture(t)
	f.join(t)
	old := f.login(t)
	current := f.login(t)

	o, err := f.svc.Logout(context.Background(), old.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnauthorized, o.Code)

	m, err := f.members.MemberRepository.FindByEmail(context.Background(), testEmail)
	require.NoError(t, err)
	row, err := f.tokens.FindByMember(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, current.RefreshToken, row.Token)
}

func TestInfrastructureErrors(t *testing.T) {
	creds := Credentials{Email: testEmail, Password: testPassword}

	t.Run("exists", func(t *testing.T) {
		f := newFixture(t)
		f.members.existsErr = errBoom
		o, err := f.svc.Join(context.Background(), creds)
		assert.ErrorIs(t, err, common.ErrorInternal)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, Outcome{}, o)
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		f.members.createErr = errBoom
		_, err := f.svc.Join(context.Background(), creds)
		assert.ErrorIs(t, err, common.ErrorInternal)
	})

	t.Run("find member", func(t *testing.T) {
		f := newFixture(t)
		f.members.findErr = errBoom
		_, err := f.svc.Login(context.Background(), creds)
		assert.ErrorIs(t, err, common.ErrorInternal)
	})

	t.Run("upsert", func(t *testing.T) {
		f := newFixture(t)
		f.join(t)
		f.tokens.upsertErr = errBoom
		o, err := f.svc.Login(context.Background(), creds)
		assert.ErrorIs(t, err, common.ErrorInternal)
		assert.Nil(t, o.Tokens)
	})

	t.Run("rotate token", func(t *testing.T) {
		f := newFixture(t)
		f.join(t)
		pair := f.login(t)
		f.tokens.rotateErr = errBoom
		_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorInternal)
	})

	t.Run("delete token", func(t *testing.T) {
		f := newFixture(t)
		f.join(t)
		pair := f.login(t)
		f.tokens.deleteErr = errBoom
		_, err := f.svc.Logout(context.Background(), pair.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorInternal)
	})

	t.Run("malformed hash", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.members.MemberRepository.Create(context.Background(), &models.Member{ID: "id", Email: testEmail, PasswordHash: "not-a-hash"})
		require.NoError(t, err)
		_, err = f.svc.Login(context.Background(), creds)
		assert.ErrorIs(t, err, common.ErrorInternal)
	})
}

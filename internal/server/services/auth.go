// Package services implements member registration, login and the refresh
// token lifecycle on top of the repositories.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/dmitrijs2005/memberauth/internal/logging"
	"github.com/dmitrijs2005/memberauth/internal/server/auth"
	"github.com/dmitrijs2005/memberauth/internal/server/models"
	"github.com/dmitrijs2005/memberauth/internal/server/password"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/members"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/memberauth/internal/server/validation"
	"github.com/google/uuid"
)

// TokenIssuer is the part of auth.Issuer the service depends on.
type TokenIssuer interface {
	Pair(memberID, email string) (*auth.TokenPair, error)
	VerifyAccess(token string) (*auth.Claims, error)
	VerifyRefresh(token string) (*auth.Claims, error)
}

type Credentials struct {
	Email    string
	Password string
}

type AuthService struct {
	members       members.Repository
	refreshTokens refreshtokens.Repository
	issuer        TokenIssuer
	hasher        password.Hasher
	logger        logging.Logger

	decoyOnce sync.Once
	decoyHash string
}

// decoyPassword is hashed once and compared against when the email is
// unknown, so a missing member costs the same hash work as a wrong password.
const decoyPassword = "decoy-password-never-matches!"

func NewAuthService(m members.Repository, rt refreshtokens.Repository, issuer TokenIssuer, hasher password.Hasher, logger logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuthService{
		members:       m,
		refreshTokens: rt,
		issuer:        issuer,
		hasher:        hasher,
		logger:        logger.With("module", "auth"),
	}
}

func internalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrorInternal, op, err)
}

// checkCredentials runs the format checks shared by Join and Login.
// Nothing is read from storage before they pass.
func checkCredentials(c Credentials) (Outcome, bool) {
	if !validation.ValidateEmail(c.Email) {
		return reject(OutcomeInvalidEmail, MsgInvalidEmail), false
	}
	if !validation.ValidatePassword(c.Password) {
		return reject(OutcomeInvalidPassword, MsgInvalidPassword), false
	}
	return Outcome{}, true
}

// Join registers a new member. A successful join issues no tokens.
func (s *AuthService) Join(ctx context.Context, c Credentials) (Outcome, error) {
	if o, valid := checkCredentials(c); !valid {
		s.logger.Warn(ctx, "join rejected", "reason", o.Code.String())
		return o, nil
	}

	exists, err := s.members.ExistsByEmail(ctx, c.Email)
	if err != nil {
		s.logger.Error(ctx, "join: existence check failed", "error", err)
		return Outcome{}, internalErr("exists by email", err)
	}
	if exists {
		s.logger.Warn(ctx, "join rejected", "reason", OutcomeConflict.String())
		return reject(OutcomeConflict, MsgEmailExists), nil
	}

	hash, err := s.hasher.Hash(c.Password)
	if err != nil {
		s.logger.Error(ctx, "join: hashing failed", "error", err)
		return Outcome{}, internalErr("hash password", err)
	}

	member, err := s.members.Create(ctx, &models.Member{
		ID:           uuid.NewString(),
		Email:        c.Email,
		PasswordHash: hash,
	})
	if err != nil {
		// lost a race with a concurrent join of the same email
		if errors.Is(err, common.ErrAlreadyExists) {
			s.logger.Warn(ctx, "join rejected", "reason", OutcomeConflict.String())
			return reject(OutcomeConflict, MsgEmailExists), nil
		}
		s.logger.Error(ctx, "join: create failed", "error", err)
		return Outcome{}, internalErr("create member", err)
	}

	s.logger.Info(ctx, "member joined", "member_id", member.ID)
	return ok(nil), nil
}

// Login checks the credentials and, on success, issues a token pair and
// makes its refresh token the member's only live one.
func (s *AuthService) Login(ctx context.Context, c Credentials) (Outcome, error) {
	if o, valid := checkCredentials(c); !valid {
		s.logger.Warn(ctx, "login rejected", "reason", o.Code.String())
		return o, nil
	}

	member, err := s.members.FindByEmail(ctx, c.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.compareDecoy(c.Password)
			s.logger.Warn(ctx, "login rejected", "reason", OutcomeNotFound.String())
			return reject(OutcomeNotFound, MsgWrongCredentials), nil
		}
		s.logger.Error(ctx, "login: lookup failed", "error", err)
		return Outcome{}, internalErr("find member", err)
	}

	match, err := s.hasher.Compare(member.PasswordHash, c.Password)
	if err != nil {
		s.logger.Error(ctx, "login: hash compare failed", "member_id", member.ID, "error", err)
		return Outcome{}, internalErr("compare password", err)
	}
	if !match {
		s.logger.Warn(ctx, "login rejected", "reason", OutcomeNotFound.String(), "member_id", member.ID)
		return reject(OutcomeNotFound, MsgWrongCredentials), nil
	}

	pair, err := s.issue(ctx, member.ID, member.Email)
	if err != nil {
		return Outcome{}, err
	}

	s.logger.Info(ctx, "member logged in", "member_id", member.ID)
	return ok(pair), nil
}

// Refresh exchanges the member's current refresh token for a new pair.
// Only the most recently issued refresh token of a member is accepted, and
// the swap is conditional on it, so one token can be spent only once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Outcome, error) {
	claims, o, valid := s.verifyRefresh(ctx, "refresh", refreshToken)
	if !valid {
		return o, nil
	}
	memberID := claims.MemberID()

	pair, err := s.pair(ctx, memberID, claims.Email)
	if err != nil {
		return Outcome{}, err
	}

	rotated, err := s.refreshTokens.Rotate(ctx, refreshToken, tokenRow(memberID, pair))
	if err != nil {
		s.logger.Error(ctx, "refresh: rotate failed", "member_id", memberID, "error", err)
		return Outcome{}, internalErr("rotate refresh token", err)
	}
	if !rotated {
		s.logger.Warn(ctx, "refresh rejected", "reason", "not the current token", "member_id", memberID)
		return reject(OutcomeUnauthorized, MsgInvalidRefreshToken), nil
	}

	s.logger.Info(ctx, "tokens refreshed", "member_id", memberID)
	return ok(pair), nil
}

// Logout revokes the member's current refresh token. A superseded token
// leaves the current one in place.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (Outcome, error) {
	claims, o, valid := s.verifyRefresh(ctx, "logout", refreshToken)
	if !valid {
		return o, nil
	}
	memberID := claims.MemberID()

	deleted, err := s.refreshTokens.DeleteIfCurrent(ctx, memberID, refreshToken)
	if err != nil {
		s.logger.Error(ctx, "logout: delete failed", "member_id", memberID, "error", err)
		return Outcome{}, internalErr("delete refresh token", err)
	}
	if !deleted {
		s.logger.Warn(ctx, "logout rejected", "reason", "not the current token", "member_id", memberID)
		return reject(OutcomeUnauthorized, MsgInvalidRefreshToken), nil
	}

	s.logger.Info(ctx, "member logged out", "member_id", memberID)
	return ok(nil), nil
}

// Authenticate verifies an access token and returns its claims.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := s.issuer.VerifyAccess(accessToken)
	if err != nil {
		s.logger.Debug(ctx, "access token rejected", "error", err)
		return nil, err
	}
	return claims, nil
}

func (s *AuthService) verifyRefresh(ctx context.Context, op, token string) (*auth.Claims, Outcome, bool) {
	claims, err := s.issuer.VerifyRefresh(token)
	if err == nil {
		return claims, Outcome{}, true
	}
	s.logger.Warn(ctx, op+" rejected", "error", err)
	if errors.Is(err, common.ErrTokenExpired) {
		return nil, reject(OutcomeUnauthorized, MsgRefreshTokenExpired), false
	}
	return nil, reject(OutcomeUnauthorized, MsgInvalidRefreshToken), false
}

func (s *AuthService) compareDecoy(plain string) {
	s.decoyOnce.Do(func() {
		s.decoyHash, _ = s.hasher.Hash(decoyPassword)
	})
	if s.decoyHash != "" {
		_, _ = s.hasher.Compare(s.decoyHash, plain)
	}
}

func tokenRow(memberID string, pair *auth.TokenPair) *models.RefreshToken {
	return &models.RefreshToken{
		MemberID:  memberID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt,
	}
}

func (s *AuthService) pair(ctx context.Context, memberID, email string) (*auth.TokenPair, error) {
	pair, err := s.issuer.Pair(memberID, email)
	if err != nil {
		s.logger.Error(ctx, "token issuance failed", "member_id", memberID, "error", err)
		return nil, internalErr("issue tokens", err)
	}
	return pair, nil
}

// issue mints a pair and makes its refresh token the member's only live one.
func (s *AuthService) issue(ctx context.Context, memberID, email string) (*auth.TokenPair, error) {
	pair, err := s.pair(ctx, memberID, email)
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokens.Upsert(ctx, tokenRow(memberID, pair)); err != nil {
		s.logger.Error(ctx, "refresh token save failed", "member_id", memberID, "error", err)
		return nil, internalErr("save refresh token", err)
	}
	return pair, nil
}

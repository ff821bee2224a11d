// Package auth はパスワードログイン、ログアウト、セッション発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/repository"
	"github.com/hitoshi/jobmatch/internal/token"
	"github.com/hitoshi/jobmatch/internal/validation"
)

// ErrInvalidCredentials はログイン失敗を表す。
// ユーザー不在・パスワード不一致・無効化アカウントを区別しない。
var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyPassword は未登録メールアドレスでも照合時間を揃えるためにハッシュ化する値。
const dummyPassword = "jobmatch-timing-equalizer"

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	NeedsRehash(digest string) bool
}

// TokenIssuer はBearerトークン発行のインターフェース。
type TokenIssuer interface {
	Issue(subject token.Subject) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL  time.Duration // 通常のセッション有効期間
	RememberTTL time.Duration // rememberMe指定時のセッション有効期間
}

// LoginInput はログイン要求。
type LoginInput struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`

	// PriorSessionID はリクエストに付いていたセッションCookieのID。
	// ログイン成功時に破棄し、新しいIDを発行する。
	PriorSessionID string `json:"-"`
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	issuer      TokenIssuer
	validator   *validation.Validator
	metrics     metrics.MetricsCollector
	config      ServiceConfig

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	issuer TokenIssuer,
	v *validation.Validator,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		issuer:      issuer,
		validator:   v,
		metrics:     mc,
		config:      config,
	}
}

// Login はメールアドレスとパスワードで認証し、セッションとBearerトークンを発行する。
// 入力不正はmodel.APIError（VALIDATION_ERROR）、認証失敗はErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	user, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		s.hasher.Verify(in.Password, s.timingHash())
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		slog.Info("login rejected for inactive account", slog.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	// セッション固定化対策: 既存セッションを破棄してから新規発行する
	if in.PriorSessionID != "" {
		if err := s.sessionRepo.DeleteByID(ctx, in.PriorSessionID); err != nil {
			return nil, fmt.Errorf("failed to destroy prior session: %w", err)
		}
	}

	session, err := s.sessionRepo.Create(ctx, user.ID, user.Role, s.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if in.RememberMe && s.config.RememberTTL > s.config.SessionTTL {
		if err := s.sessionRepo.Touch(ctx, session.ID, s.config.RememberTTL); err != nil {
			s.discardSession(ctx, session.ID)
			return nil, fmt.Errorf("failed to extend session: %w", err)
		}
		session.ExpiresAt = time.Now().UTC().Add(s.config.RememberTTL)
	}
	s.metrics.RecordSessionCreated()

	tok, err := s.issuer.Issue(token.Subject{ID: user.ID, Email: user.Email})
	if err != nil {
		s.discardSession(ctx, session.ID)
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLogin = &now
	}

	s.rehashIfNeeded(ctx, user, in.Password)

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
		slog.Bool("remember_me", in.RememberMe),
	)

	return &LoginResult{User: user, Session: session, Token: tok}, nil
}

// Logout はセッションを破棄する。セッションIDが空・存在しない場合も成功とする。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.metrics.RecordLogout()
	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はユーザーIDから現在のユーザーを取得する。
// ユーザーが存在しない場合はUSER_NOT_FOUNDのAPIErrorを返す。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewAuthenticationRequiredError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// timingHash は照合時間を揃えるためのダミーハッシュを返す。初回のみ生成する。
func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Error("failed to prepare dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// discardSession は発行途中で失敗したセッションを破棄する。
func (s *Service) discardSession(ctx context.Context, sessionID string) {
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		slog.Warn("failed to discard session", slog.String("error", err.Error()))
	}
}

// rehashIfNeeded はハッシュのコストが設定値と異なる場合に再ハッシュして保存する。
// 失敗してもログインは成功扱いとする。
func (s *Service) rehashIfNeeded(ctx context.Context, user *model.User, plain string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		slog.Warn("failed to rehash password", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		return
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		slog.Warn("failed to store rehashed password", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		return
	}
	user.PasswordHash = digest
}

// Package user はユーザー登録と管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/repository"
	"github.com/hitoshi/jobmatch/internal/security"
	"github.com/hitoshi/jobmatch/internal/validation"
)

// 一覧取得のページング設定。
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// PasswordHasher はパスワードハッシュ化のインターフェース。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// SessionRevoker はユーザーの全セッション破棄のインターフェース。
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// RegisterInput はユーザー登録要求。
// 氏名は無害化した後に長さを検証する。adminは自己登録できない。
type RegisterInput struct {
	Role      string `json:"role" validate:"required,oneof=worker company manager"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,password"`
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,http_url,max=2048"`
}

// UpdateProfileInput はプロフィール更新要求。nilのフィールドは変更しない。
type UpdateProfileInput struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,phone"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	sessions  SessionRevoker
	hasher    PasswordHasher
	sanitizer security.TextSanitizer
	validator *validation.Validator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessions SessionRevoker,
	hasher PasswordHasher,
	sanitizer security.TextSanitizer,
	v *validation.Validator,
) *Service {
	return &Service{
		userRepo:  userRepo,
		sessions:  sessions,
		hasher:    hasher,
		sanitizer: sanitizer,
		validator: v,
	}
}

// Register はユーザーを登録する。パスワードはハッシュ化して保存する。
// メールアドレスが登録済みの場合はEMAIL_TAKENのAPIErrorを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.FirstName = s.sanitizer.Sanitize(in.FirstName)
	in.LastName = s.sanitizer.Sanitize(in.LastName)

	if err := s.validator.Struct(in); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("ユーザー登録に失敗しました: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: digest,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		AvatarURL:    in.AvatarURL,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("ユーザー登録に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)

	return user, nil
}

// Get は指定IDのユーザーを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewValidationError("id must be a valid UUID")
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// List はユーザー一覧を返す。limitは1以上MaxListLimit以下、offsetは0以上。
func (s *Service) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	if limit <= 0 {
		return nil, model.NewValidationError("limit must be a positive number")
	}
	if offset < 0 {
		return nil, model.NewValidationError("offset must be zero or greater")
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// UpdateProfile は指定ユーザーのプロフィールを更新する。
// 氏名は無害化した後に検証する。空文字列のPhoneは電話番号の削除を意味する。
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewValidationError("id must be a valid UUID")
	}
	if in.FirstName == nil && in.LastName == nil && in.Phone == nil {
		return nil, model.NewValidationError("at least one of firstName, lastName, phone is required")
	}

	for _, name := range []*string{in.FirstName, in.LastName} {
		if name != nil {
			*name = s.sanitizer.Sanitize(*name)
			if *name == "" {
				return nil, model.NewValidationError("name must not be empty")
			}
		}
	}
	check := in
	if check.Phone != nil && *check.Phone == "" {
		check.Phone = nil
	}
	if err := s.validator.Struct(check); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	user, err := s.userRepo.UpdateProfile(ctx, id, repository.ProfileUpdate{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Deactivate はユーザーを無効化し、全セッションを破棄する。
// 無効化後はログインできなくなる。発行済みBearerトークンは期限まで有効。
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewValidationError("id must be a valid UUID")
	}

	found, err := s.userRepo.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("ユーザーの無効化に失敗しました: %w", err)
	}
	if !found {
		return model.NewUserNotFoundError()
	}

	if s.sessions != nil {
		if err := s.sessions.DeleteByUserID(ctx, id); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	slog.Info("ユーザーを無効化しました", slog.String("user_id", id))
	return nil
}

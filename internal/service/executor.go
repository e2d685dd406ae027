package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"staffdesk/internal/model"
	"staffdesk/internal/queue"
	"staffdesk/internal/repository"
	"staffdesk/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost       = 10
	resetTokenBytes  = 32
	resetTokenExpiry = 15 * time.Minute
	resetCodeLength  = 6
	avatarPrefix     = "avatars"
	welcomeSubject   = "Welcome! Your Account Details"
	resetSubject     = "Password Reset Code"
)

var ErrDefaultPasswordUnset = errors.New("default user password not configured")

// UserStore is the slice of the user repository the executor needs.
type UserStore interface {
	Insert(ctx context.Context, user *model.User) error
	Update(ctx context.Context, id int64, fields map[string]any) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// ResetTokenStore persists password reset tokens.
type ResetTokenStore interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	InvalidateAllFor(ctx context.Context, userID int64) error
}

// Sender delivers a notification. Implementations decide transport.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// BlobStore holds avatar images. Put returns the public URL of the object.
type BlobStore interface {
	Put(ctx context.Context, object, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, object string) error
}

type ExecutorConfig struct {
	DefaultPassword string
	AppBaseURL      string
}

// ActionExecutor maps an action's kind to one external-effect operation.
// Every error it returns is classified so the retry policy behaves sanely:
// duplicate-email errors re-fail deterministically and exhaust retries,
// store errors are worth retrying, notification errors never roll back
// state already committed.
type ActionExecutor struct {
	users  UserStore
	tokens ResetTokenStore
	mail   Sender
	blobs  BlobStore
	cfg    ExecutorConfig
}

func NewActionExecutor(users UserStore, tokens ResetTokenStore, mail Sender, blobs BlobStore, cfg ExecutorConfig) *ActionExecutor {
	return &ActionExecutor{
		users:  users,
		tokens: tokens,
		mail:   mail,
		blobs:  blobs,
		cfg:    cfg,
	}
}

func (e *ActionExecutor) Execute(ctx context.Context, action *queue.Action) error {
	switch p := action.Payload.(type) {
	case queue.CreateUserPayload:
		return e.createUser(ctx, p)
	case queue.UpdateUserPayload:
		return e.updateUser(ctx, p)
	case queue.ResetPasswordPayload:
		return e.resetPassword(ctx, p)
	case queue.UploadAvatarPayload:
		return e.uploadAvatar(ctx, p)
	case queue.DeleteAvatarPayload:
		return e.deleteAvatar(ctx, p)
	default:
		return fmt.Errorf("%w: %s", queue.ErrUnknownActionKind, action.Kind)
	}
}

func (e *ActionExecutor) createUser(ctx context.Context, p queue.CreateUserPayload) error {
	if e.cfg.DefaultPassword == "" {
		return ErrDefaultPasswordUnset
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(e.cfg.DefaultPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}

	user := &model.User{
		Email:               p.Email,
		PasswordHash:        string(hash),
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		MiddleName:          p.MiddleName,
		UserLevel:           p.UserLevel,
		IsActive:            true,
		ForcePasswordChange: true,
	}
	if err := e.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return err
		}
		return fmt.Errorf("store error: %w", err)
	}

	body := fmt.Sprintf(
		"<p>Hello %s,</p>"+
			"<p>Welcome! Your account has been created.</p>"+
			"<ul><li><strong>Email:</strong> %s</li>"+
			"<li><strong>Temporary Password:</strong> %s</li></ul>"+
			"<p>For security reasons, reset your password after your first login "+
			`at <a href="%s/forgot-password">the password reset page</a>.</p>`,
		p.FirstName, p.Email, e.cfg.DefaultPassword, e.cfg.AppBaseURL)

	if err := e.mail.Send(ctx, p.Email, welcomeSubject, body); err != nil {
		return fmt.Errorf("notification error: %w", err)
	}
	return nil
}

func (e *ActionExecutor) updateUser(ctx context.Context, p queue.UpdateUserPayload) error {
	fields := map[string]any{
		"first_name":  p.FirstName,
		"last_name":   p.LastName,
		"middle_name": p.MiddleName,
		"email":       p.Email,
		"user_level":  p.UserLevel,
	}
	if err := e.users.Update(ctx, p.ID, fields); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return err
		}
		return fmt.Errorf("store error: %w", err)
	}
	return nil
}

func (e *ActionExecutor) resetPassword(ctx context.Context, p queue.ResetPasswordPayload) error {
	if err := e.tokens.InvalidateAllFor(ctx, p.UserID); err != nil {
		return fmt.Errorf("store error: %w", err)
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	record := &model.PasswordResetToken{
		UserID:    p.UserID,
		Token:     token,
		ExpiresAt: time.Now().Add(resetTokenExpiry),
	}
	if err := e.tokens.Create(ctx, record); err != nil {
		return fmt.Errorf("store error: %w", err)
	}

	code := token[:resetCodeLength]
	body := fmt.Sprintf(
		"<p>Your password reset code is: <b>%s</b></p><p>This code is valid for 15 minutes.</p>", code)

	// The token write stays valid even when the email fails; a retry
	// invalidates it and issues a fresh one, which is harmless.
	if err := e.mail.Send(ctx, p.Email, resetSubject, body); err != nil {
		return fmt.Errorf("notification error: %w", err)
	}
	return nil
}

func (e *ActionExecutor) uploadAvatar(ctx context.Context, p queue.UploadAvatarPayload) error {
	object := avatarPrefix + "/" + p.FileName

	publicURL, err := e.blobs.Put(ctx, object, p.ContentType, p.Data)
	if err != nil {
		return fmt.Errorf("store error: upload avatar: %w", err)
	}

	if err := e.users.Update(ctx, p.UserID, map[string]any{"avatar_url": publicURL}); err != nil {
		// Compensate so a failed record update doesn't leak an orphan blob.
		if delErr := e.blobs.Delete(ctx, object); delErr != nil {
			logger.Warn("failed to remove orphaned avatar after update failure",
				zap.String("object", object), zap.Error(delErr))
		}
		return fmt.Errorf("store error: update avatar url: %w", err)
	}
	return nil
}

func (e *ActionExecutor) deleteAvatar(ctx context.Context, p queue.DeleteAvatarPayload) error {
	user, err := e.users.FindByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("store error: %w", err)
	}
	if user == nil {
		return fmt.Errorf("store error: user %d not found", p.UserID)
	}

	if err := e.users.Update(ctx, p.UserID, map[string]any{"avatar_url": nil}); err != nil {
		return fmt.Errorf("store error: clear avatar url: %w", err)
	}

	// The record update is authoritative; blob removal is best effort.
	if user.AvatarURL != nil && *user.AvatarURL != "" {
		object := avatarPrefix + "/" + path.Base(strings.TrimSuffix(*user.AvatarURL, "/"))
		if err := e.blobs.Delete(ctx, object); err != nil {
			logger.Warn("failed to delete avatar blob",
				zap.Int64("user_id", p.UserID),
				zap.String("object", object),
				zap.Error(err))
		}
	}
	return nil
}

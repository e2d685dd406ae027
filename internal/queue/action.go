package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCreateUser    Kind = "CREATE_USER"
	KindUpdateUser    Kind = "UPDATE_USER"
	KindResetPassword Kind = "RESET_PASSWORD"
	KindUploadAvatar  Kind = "UPLOAD_AVATAR"
	KindDeleteAvatar  Kind = "DELETE_AVATAR"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRetrying   Status = "RETRYING"
)

var (
	// ErrQueueFull is the only queue error surfaced synchronously to
	// submitters; everything else lands in the action's LastError.
	ErrQueueFull = errors.New("queue is full, cannot add more actions")

	ErrUnknownActionKind = errors.New("unknown action kind")
)

// Payload is the closed set of per-kind action payloads. The marker method
// keeps the set sealed to this package, so a payload always matches its kind.
type Payload interface {
	Kind() Kind
	isPayload()
}

type CreateUserPayload struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Email      string `json:"email"`
	UserLevel  string `json:"user_level"`
}

type UpdateUserPayload struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Email      string `json:"email"`
	UserLevel  string `json:"user_level"`
}

type ResetPasswordPayload struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

type UploadAvatarPayload struct {
	UserID      int64  `json:"user_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

type DeleteAvatarPayload struct {
	UserID int64 `json:"user_id"`
}

func (CreateUserPayload) Kind() Kind    { return KindCreateUser }
func (UpdateUserPayload) Kind() Kind    { return KindUpdateUser }
func (ResetPasswordPayload) Kind() Kind { return KindResetPassword }
func (UploadAvatarPayload) Kind() Kind  { return KindUploadAvatar }
func (DeleteAvatarPayload) Kind() Kind  { return KindDeleteAvatar }

func (CreateUserPayload) isPayload()    {}
func (UpdateUserPayload) isPayload()    {}
func (ResetPasswordPayload) isPayload() {}
func (UploadAvatarPayload) isPayload()  {}
func (DeleteAvatarPayload) isPayload()  {}

// Action is one queued administrative mutation. The ID is immutable; status,
// timestamps, retry bookkeeping and the error message are owned by FIFOQueue
// and only change under its lock.
type Action struct {
	ID          string        `json:"id"`
	UserID      int64         `json:"user_id"`
	Kind        Kind          `json:"kind"`
	Payload     Payload       `json:"payload"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	RetryCount  int           `json:"retry_count"`
	MaxRetries  int           `json:"max_retries"`
	TTL         time.Duration `json:"ttl"`
	LastError   string        `json:"error,omitempty"`
}

func newAction(userID int64, payload Payload, createdAt time.Time, maxRetries int, ttl time.Duration) *Action {
	return &Action{
		ID:         uuid.New().String(),
		UserID:     userID,
		Kind:       payload.Kind(),
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  createdAt,
		MaxRetries: maxRetries,
		TTL:        ttl,
	}
}

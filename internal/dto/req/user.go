package req

type CreateUserRequest struct {
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	MiddleName string `json:"middle_name"`
	Email      string `json:"email" binding:"required,email"`
	UserLevel  string `json:"user_level" binding:"required,oneof=admin staff"`
	QueueOptions
}

type UpdateUserRequest struct {
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	MiddleName string `json:"middle_name"`
	Email      string `json:"email" binding:"required,email"`
	UserLevel  string `json:"user_level" binding:"required,oneof=admin staff"`
	QueueOptions
}

// QueueOptions overrides queue defaults for one submission.
type QueueOptions struct {
	TTLMillis  int64 `json:"ttl_millis"`
	MaxRetries int   `json:"max_retries"`
}

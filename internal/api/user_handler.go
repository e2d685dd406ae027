package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"staffdesk/internal/dto/req"
	"staffdesk/internal/dto/resp"
	"staffdesk/internal/queue"
	"staffdesk/internal/repository"
	"staffdesk/internal/service"

	"github.com/gin-gonic/gin"
)

const maxAvatarBytes = 5 << 20

// QueueProvider is the queue facade surface the handlers depend on.
type QueueProvider interface {
	Submit(userID int64, payload queue.Payload, opts service.SubmitOptions) (string, error)
	Stats() queue.Stats
	Actions(status queue.Status, userID *int64) []queue.Action
	Get(actionID string) *queue.Action
	Size() int
	IsEmpty() bool
}

type UserHandler struct {
	queue QueueProvider
	users repository.UserInterface
}

func NewUserHandler(q QueueProvider, users repository.UserInterface) *UserHandler {
	return &UserHandler{queue: q, users: users}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser accepts the request and queues the mutation; the record appears
// once the queue processes it.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var r req.CreateUserRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actionID, err := h.submit(c, queue.CreateUserPayload{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		MiddleName: r.MiddleName,
		Email:      r.Email,
		UserLevel:  r.UserLevel,
	}, r.QueueOptions)
	if err != nil {
		return
	}
	c.JSON(http.StatusAccepted, resp.SubmitResponse{ActionID: actionID})
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var r req.UpdateUserRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actionID, err := h.submit(c, queue.UpdateUserPayload{
		ID:         id,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		MiddleName: r.MiddleName,
		Email:      r.Email,
		UserLevel:  r.UserLevel,
	}, r.QueueOptions)
	if err != nil {
		return
	}
	c.JSON(http.StatusAccepted, resp.SubmitResponse{ActionID: actionID})
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	actionID, err := h.submit(c, queue.ResetPasswordPayload{
		UserID: user.ID,
		Email:  user.Email,
	}, req.QueueOptions{})
	if err != nil {
		return
	}
	c.JSON(http.StatusAccepted, resp.SubmitResponse{ActionID: actionID})
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	fileName := fmt.Sprintf("%d-%d%s", id, time.Now().UnixMilli(), filepath.Ext(fileHeader.Filename))

	actionID, err := h.submit(c, queue.UploadAvatarPayload{
		UserID:      id,
		FileName:    fileName,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, req.QueueOptions{})
	if err != nil {
		return
	}
	c.JSON(http.StatusAccepted, resp.SubmitResponse{ActionID: actionID})
}

func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	actionID, err := h.submit(c, queue.DeleteAvatarPayload{UserID: id}, req.QueueOptions{})
	if err != nil {
		return
	}
	c.JSON(http.StatusAccepted, resp.SubmitResponse{ActionID: actionID})
}

// submit enqueues on behalf of the authenticated operator and writes the
// error response itself when the queue rejects the action.
func (h *UserHandler) submit(c *gin.Context, payload queue.Payload, opts req.QueueOptions) (string, error) {
	submitOpts := service.SubmitOptions{
		MaxRetries: opts.MaxRetries,
	}
	if opts.TTLMillis > 0 {
		submitOpts.TTL = time.Duration(opts.TTLMillis) * time.Millisecond
	}

	actionID, err := h.queue.Submit(service.GetOperatorID(c.Request.Context()), payload, submitOpts)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue is full, try again later"})
			return "", err
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", err
	}
	return actionID, nil
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

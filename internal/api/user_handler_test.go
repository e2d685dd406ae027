package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"staffdesk/internal/dto/resp"
	"staffdesk/internal/model"
	"staffdesk/internal/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	byID  map[int64]*model.User
	users []model.User
}

func (s *stubUserRepo) Insert(ctx context.Context, user *model.User) error { return nil }
func (s *stubUserRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	return nil
}
func (s *stubUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return s.byID[id], nil
}
func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (s *stubUserRepo) List(ctx context.Context, search string) ([]model.User, error) {
	return s.users, nil
}
func (s *stubUserRepo) PingContext(ctx context.Context) error { return nil }
func (s *stubUserRepo) WithTx(tx *gorm.DB) any                { return s }

func newUserTestRouter(q *stubQueue, users *stubUserRepo) *gin.Engine {
	if users.byID == nil {
		users.byID = make(map[int64]*model.User)
	}
	r := gin.New()
	h := NewUserHandler(q, users)
	r.GET("/v1/users", h.ListUsers)
	r.POST("/v1/users", h.CreateUser)
	r.PUT("/v1/users/:id", h.UpdateUser)
	r.POST("/v1/users/:id/reset-password", h.ResetPassword)
	r.POST("/v1/users/:id/avatar", h.UploadAvatar)
	r.DELETE("/v1/users/:id/avatar", h.DeleteAvatar)
	return r
}

func postJSON(r *gin.Engine, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateUser_Accepted(t *testing.T) {
	q := &stubQueue{}
	r := newUserTestRouter(q, &stubUserRepo{})

	w := postJSON(r, "/v1/users", `{
		"first_name": "Ada",
		"last_name": "Lovelace",
		"email": "ada@example.com",
		"user_level": "staff"
	}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var body resp.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ActionID == "" {
		t.Fatal("response should carry the action id")
	}

	if len(q.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(q.submitted))
	}
	p, ok := q.submitted[0].(queue.CreateUserPayload)
	if !ok || p.Email != "ada@example.com" {
		t.Fatalf("unexpected payload %+v", q.submitted[0])
	}
}

func TestCreateUser_ValidationRejected(t *testing.T) {
	q := &stubQueue{}
	r := newUserTestRouter(q, &stubUserRepo{})

	w := postJSON(r, "/v1/users", `{"first_name": "Ada", "user_level": "superuser"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(q.submitted) != 0 {
		t.Fatal("invalid request must not reach the queue")
	}
}

func TestCreateUser_QueueFull(t *testing.T) {
	q := &stubQueue{submitErr: queue.ErrQueueFull}
	r := newUserTestRouter(q, &stubUserRepo{})

	w := postJSON(r, "/v1/users", `{
		"first_name": "Ada",
		"last_name": "Lovelace",
		"email": "ada@example.com",
		"user_level": "staff"
	}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("queue full should map to 503, got %d", w.Code)
	}
}

func TestUpdateUser_InvalidID(t *testing.T) {
	r := newUserTestRouter(&stubQueue{}, &stubUserRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/users/abc", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", w.Code)
	}
}

func TestResetPassword_QueuesTargetEmail(t *testing.T) {
	q := &stubQueue{}
	users := &stubUserRepo{byID: map[int64]*model.User{
		7: {ID: 7, Email: "ada@example.com"},
	}}
	r := newUserTestRouter(q, users)

	w := postJSON(r, "/v1/users/7/reset-password", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	p, ok := q.submitted[0].(queue.ResetPasswordPayload)
	if !ok || p.UserID != 7 || p.Email != "ada@example.com" {
		t.Fatalf("unexpected payload %+v", q.submitted[0])
	}
}

func TestResetPassword_UnknownUser(t *testing.T) {
	r := newUserTestRouter(&stubQueue{}, &stubUserRepo{})

	w := postJSON(r, "/v1/users/99/reset-password", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUploadAvatar_Accepted(t *testing.T) {
	q := &stubQueue{}
	r := newUserTestRouter(q, &stubUserRepo{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("avatar", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("png-bytes"))
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/users/42/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	p, ok := q.submitted[0].(queue.UploadAvatarPayload)
	if !ok || p.UserID != 42 {
		t.Fatalf("unexpected payload %+v", q.submitted[0])
	}
	if !strings.HasPrefix(p.FileName, "42-") || !strings.HasSuffix(p.FileName, ".png") {
		t.Fatalf("unexpected file name %q", p.FileName)
	}
	if string(p.Data) != "png-bytes" {
		t.Fatal("payload should carry the file bytes")
	}
}

func TestUploadAvatar_MissingFile(t *testing.T) {
	r := newUserTestRouter(&stubQueue{}, &stubUserRepo{})

	w := postJSON(r, "/v1/users/42/avatar", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a file, got %d", w.Code)
	}
}

func TestDeleteAvatar_Accepted(t *testing.T) {
	q := &stubQueue{}
	r := newUserTestRouter(q, &stubUserRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/users/42/avatar", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	p, ok := q.submitted[0].(queue.DeleteAvatarPayload)
	if !ok || p.UserID != 42 {
		t.Fatalf("unexpected payload %+v", q.submitted[0])
	}
}

package resp

type UserInfo struct {
	ID                  int64  `json:"id"`
	Email               string `json:"email"`
	Level               string `json:"level"`
	ForcePasswordChange bool   `json:"force_password_change"`
}

type TokenResp struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"` // seconds
	User         UserInfo `json:"user"`
}

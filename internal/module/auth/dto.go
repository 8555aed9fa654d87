package auth

// LoginRequest carries the administrator's credentials.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required,max=100"`
	Password string `json:"password" form:"password" binding:"required,max=72"`
}

// TokenResponse is the bearer token issued by a successful login.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

package port

import "context"

// Credentials for the external login API.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is what the login API issues.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// Authenticator 外部认证服务的边界，只消费不实现
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
	IsAuthenticated() bool
	Token() string
}

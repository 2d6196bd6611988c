package http

import "github.com/breviobot/breviobot-service/app/entity"

type UserSummary struct {
	ID         uint64 `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

func NewUserSummary(user *entity.User) UserSummary {
	return UserSummary{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role(),
		IsVerified: user.IsVerified,
	}
}

type SignupResponse struct {
	UserSummary
	Message string `json:"message"`
}

type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	User         UserSummary `json:"user"`
}

// RefreshResponse carries RefreshToken only when the server rotates it.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type IdentityResponse struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type MeResponse struct {
	User IdentityResponse `json:"user"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/pkg/jwt"
)

// RegisterRequest for POST /auth/register
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	Username string `json:"username" validate:"omitempty,alphanum,min=3,max=30"`
}

// LoginRequest for POST /auth/login. Identifier is an email, phone or username.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	Password   string `json:"password" validate:"required"`
}

// RefreshRequest for POST /auth/refresh and /auth/logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse returned after login/register
type AuthResponse struct {
	User   UserResponse   `json:"user"`
	Tokens TokensResponse `json:"tokens"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	WalletID  uuid.UUID `json:"wallet_id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Username  string    `json:"username,omitempty"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt string    `json:"created_at"`
}

type TokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds until access token expires
	TokenType    string `json:"token_type"`
}

func NewUserResponse(u *user.User, walletID uuid.UUID) UserResponse {
	return UserResponse{
		ID:        u.ID,
		WalletID:  walletID,
		Email:     u.Email,
		Phone:     u.Phone.String,
		Username:  u.Username.String,
		FullName:  u.FullName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func newTokensResponse(p *jwt.Pair) TokensResponse {
	return TokensResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    p.ExpiresIn,
		TokenType:    "Bearer",
	}
}

package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int64     `json:"expiresIn"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Viewer identifies who is asking; schedule and assignment views depend on it.
type Viewer struct {
	UserID string
	Role   UserRole
}

// ViewerFromClaims extracts the viewer; nil claims yield an anonymous viewer.
func ViewerFromClaims(claims *JWTClaims) Viewer {
	if claims == nil {
		return Viewer{}
	}
	return Viewer{UserID: claims.UserID, Role: claims.Role}
}

func (v Viewer) IsStudent() bool { return v.Role == RoleStudent }
func (v Viewer) IsTeacher() bool { return v.Role == RoleTeacher }
func (v Viewer) IsAdmin() bool   { return v.Role == RoleAdmin }

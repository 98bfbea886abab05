package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload accepted by the API.
type JWTClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

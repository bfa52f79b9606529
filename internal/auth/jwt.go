package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	jwtSecret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{jwtSecret: []byte(secret)}
}

// GenerateToken signs a token for id, valid for ttl.
func (v *JWTVerifier) GenerateToken(id Identity, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  id.ID,
		"username": id.Username,
		"email":    id.Email,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(v.jwtSecret)
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrUnauthorized
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrUnauthorized
	}

	// user_id is what the auth service issues; sub is accepted for
	// standard tokens
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return Identity{}, ErrUnauthorized
	}

	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	return Identity{ID: userID, Username: username, Email: email}, nil
}

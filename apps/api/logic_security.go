package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/S-troup10/westBasketball/libs/admintoken"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = &apiError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "invalid credentials"}
	errMissingToken       = &apiError{Status: http.StatusUnauthorized, Code: "missing_token", Message: "missing token"}
	errInvalidToken       = &apiError{Status: http.StatusUnauthorized, Code: "invalid_token", Message: "invalid token"}
)

// Authenticator holds the shared admin credential. It is built once at start
// and never mutated.
type Authenticator struct {
	secret        string
	passwordHash  []byte
	expectedToken string
}

// passwordDigest pre-hashes a password so bcrypt sees every byte of it.
// bcrypt alone ignores input past 72 bytes.
func passwordDigest(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(sum[:]))
}

func NewAuthenticator(password, secret string) (*Authenticator, error) {
	hash, err := bcrypt.GenerateFromPassword(passwordDigest(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Authenticator{
		secret:        secret,
		passwordHash:  hash,
		expectedToken: admintoken.Issue(password, secret),
	}, nil
}

// CheckPassword reports whether password is the admin password.
func (a *Authenticator) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.passwordHash, passwordDigest(password)) == nil
}

func (a *Authenticator) IssueToken(password string) string {
	return admintoken.Issue(password, a.secret)
}

func (a *Authenticator) VerifyToken(candidate string) bool {
	return candidate != "" && admintoken.Equal(candidate, a.expectedToken)
}

// bearerTokenFromHeader extracts the credential of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerTokenFromHeader(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

func (a *App) requireAdminToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerTokenFromHeader(c.GetHeader("Authorization"))
		if !ok {
			writeAPIError(c, errMissingToken)
			return
		}
		if !a.auth.VerifyToken(token) {
			a.log.Warn("rejected admin token", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			writeAPIError(c, errInvalidToken)
			return
		}
		c.Next()
	}
}

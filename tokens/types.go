package tokens

import (
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

type TokenType string

const AccessTokenType TokenType = "access"
const RefreshTokenType TokenType = "refresh"

var (
	// ErrInvalidToken is the coarse error returned to callers,
	// the concrete reason is only ever logged
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired signals the token was well formed but expired
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked signals the token jti sits on the blacklist
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims is the decoded token handed out to the service layer
type Claims struct {
	id        string
	userID    int64
	tokenType TokenType
	audience  []string
	issuer    string
	issuedAt  time.Time
	expiresAt time.Time
}

// ID returns the jti
func (c *Claims) ID() string {
	return c.id
}

func (c *Claims) UserID() int64 {
	return c.userID
}

func (c *Claims) Type() TokenType {
	return c.tokenType
}

func (c *Claims) Audience() []string {
	return c.audience
}

func (c *Claims) Issuer() string {
	return c.issuer
}

func (c *Claims) IssuedAt() time.Time {
	return c.issuedAt
}

func (c *Claims) ExpiresAt() time.Time {
	return c.expiresAt
}

func claimsFromJWT(token jwt.Token, userID int64) *Claims {
	c := &Claims{
		id:        token.JwtID(),
		userID:    userID,
		audience:  token.Audience(),
		issuer:    token.Issuer(),
		issuedAt:  token.IssuedAt(),
		expiresAt: token.Expiration(),
	}
	if use, ok := token.Get(ClaimTokenUse); ok {
		if s, sok := use.(string); sok {
			c.tokenType = TokenType(s)
		}
	}
	return c
}

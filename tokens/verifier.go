package tokens

import (
	"context"
	"errors"
	"strconv"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// BlacklistChecker answers whether a jti has been revoked
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

func NewTokenVerifier(log *zap.Logger,
	issuer *TokenIssuer,
	blacklist BlacklistChecker) *TokenVerifier {
	return &TokenVerifier{
		log:       log,
		issuer:    issuer,
		blacklist: blacklist,
	}
}

type TokenVerifier struct {
	log       *zap.Logger
	issuer    *TokenIssuer
	blacklist BlacklistChecker
}

// Verify parses and validates the token, checks that its token_use
// claim matches the expected type and that the jti is not blacklisted.
// Every failure surfaces as ErrInvalidToken, the concrete reason only
// goes to the log so callers cannot leak it
func (t *TokenVerifier) Verify(
	ctx context.Context,
	raw string,
	expected TokenType,
) (*Claims, error) {
	if len(t.issuer.parseOptions) == 0 {
		return nil, errors.New("no valid JWT parsing options")
	}
	token, err := jwt.Parse([]byte(raw), t.issuer.parseOptions...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired()):
			t.log.Debug("expired token presented")
		default:
			t.log.Debug("unparseable token presented", zap.Error(err))
		}
		return nil, ErrInvalidToken
	}
	claims, err := t.claims(token)
	if err != nil {
		t.log.Debug("token with malformed claims presented", zap.Error(err))
		return nil, ErrInvalidToken
	}
	if claims.Type() != expected {
		t.log.Debug("token type mismatch",
			zap.String("expected", string(expected)),
			zap.String("got", string(claims.Type())))
		return nil, ErrInvalidToken
	}
	if t.blacklist != nil {
		revoked, err := t.blacklist.IsBlacklisted(ctx, claims.ID())
		if err != nil {
			t.log.Error("blacklist lookup failed", zap.Error(err))
			return nil, err
		}
		if revoked {
			t.log.Debug("revoked token presented", zap.String("jti", claims.ID()))
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// DecodeExpired decodes a token whose signature must check out but
// whose expiry is ignored, used when blacklisting on logout
func (t *TokenVerifier) DecodeExpired(raw string) (*Claims, error) {
	options := make([]jwt.ParseOption, 0, len(t.issuer.parseOptions))
	for _, o := range t.issuer.parseOptions {
		options = append(options, o)
	}
	options = append(options, jwt.WithValidate(false))
	token, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		t.log.Debug("unparseable token presented", zap.Error(err))
		return nil, ErrInvalidToken
	}
	claims, err := t.claims(token)
	if err != nil {
		t.log.Debug("token with malformed claims presented", zap.Error(err))
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenVerifier) claims(token jwt.Token) (*Claims, error) {
	if token.JwtID() == "" {
		return nil, errors.New("token carries no jti")
	}
	userID, err := strconv.ParseInt(token.Subject(), 10, 64)
	if err != nil {
		return nil, errors.New("token subject is not a user id")
	}
	return claimsFromJWT(token, userID), nil
}

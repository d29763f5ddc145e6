package tokens

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sepetli/kimlik/config"
	"go.uber.org/zap"
)

const (
	// ClaimTokenUse distinguishes access from refresh tokens
	ClaimTokenUse = "token_use"

	algHS256 = "HS256"
	algHS384 = "HS384"
	algHS512 = "HS512"
)

type TokenIssuer struct {
	log           *zap.Logger
	privateKey    jwk.Key
	alg           jwa.SignatureAlgorithm
	aud           []string
	expiry        time.Duration
	refreshExpiry time.Duration
	iss           string
	parseOptions  []jwt.ParseOption
}

func checkForWeakHMAC(log *zap.Logger, alg string, key string) {
	if alg == algHS256 && len(key) <= 31 {
		log.Warn("weak secret, consider chossing another secret")
	}
	if alg == algHS384 && len(key) <= 39 {
		log.Warn("weak secret, consider chossing another secret")
	}
	if alg == algHS512 && len(key) <= 57 {
		log.Warn("weak secret, consider chossing another secret")
	}
}

func NewIssuer(
	log *zap.Logger,
	cfg *config.JWTConfiguration,
) *TokenIssuer {
	options := make([]jwt.ParseOption, 0)
	options = append(options, jwt.WithValidate(true))
	var privateKeyJwk jwk.Key
	//okay this is probably the only reason and place to panic...
	switch cfg.Algorithm {
	case algHS256, algHS384, algHS512:
		privateKeyJwk, options = loadHMACKey(cfg, log, options)
	default:
		log.Error("invalid jwt.alg defined. Possible values: HS256,HS384,HS512")
		panic("invalid jwt.alg defined. Possible values: HS256,HS384,HS512")
	}
	_ = privateKeyJwk.Set("alg", cfg.Algorithm)
	_ = privateKeyJwk.Set("use", "sig")
	return &TokenIssuer{
		log:           log,
		alg:           jwa.SignatureAlgorithm(cfg.Algorithm),
		privateKey:    privateKeyJwk,
		aud:           cfg.Audience,
		expiry:        cfg.Expiry,
		refreshExpiry: cfg.RefreshTokenExpiry,
		iss:           cfg.Issuer,
		parseOptions:  options,
	}
}

func loadHMACKey(
	cfg *config.JWTConfiguration,
	log *zap.Logger,
	options []jwt.ParseOption) (jwk.Key, []jwt.ParseOption) {
	var privateKey []byte
	//direct key takes precende
	if len(cfg.HMACSigningKey) > 0 {
		checkForWeakHMAC(log, cfg.Algorithm, cfg.HMACSigningKey)
		privateKey = []byte(cfg.HMACSigningKey)
	} else if len(cfg.HMACSigningKeyFile) > 0 {
		content, err := os.ReadFile(cfg.HMACSigningKeyFile)
		if err != nil {
			log.Error("could not load key file", zap.String("file", cfg.HMACSigningKeyFile), zap.Error(err))
			panic("could not load key file")
		}
		checkForWeakHMAC(log, cfg.Algorithm, string(content))
		privateKey = content
	} else {
		log.Error("no HMAC key defined, either set jwt.hmac-signing-key or jwt.hmac-signing-key-file")
		panic("no HMAC key defined")
	}
	if len(privateKey) > 0 {
		privateKeyJwk, err := jwk.FromRaw(privateKey)
		if err != nil {
			log.Error("unable to process symetric key", zap.Error(err))
			panic("unable to process symetric key")
		}
		options = append(
			options,
			jwt.WithKey(jwa.SignatureAlgorithm(cfg.Algorithm), privateKeyJwk),
		)
		return privateKeyJwk, options
	}
	log.Error("no HMAC key defined, either set jwt.hmac-signing-key or jwt.hmac-signing-key-file")
	panic("no valid key found")
}

func (t *TokenIssuer) Audience() []string {
	return t.aud
}

func (t *TokenIssuer) Issuer() string {
	return t.iss
}

// AccessTokenExpiry is the configured access token lifetime
func (t *TokenIssuer) AccessTokenExpiry() time.Duration {
	return t.expiry
}

// RefreshTokenExpiry is the configured refresh token lifetime
func (t *TokenIssuer) RefreshTokenExpiry() time.Duration {
	return t.refreshExpiry
}

// IssueAccessToken issues a signed short-lived access token with a
// fresh jti for the given user
func (t *TokenIssuer) IssueAccessToken(userID int64) (string, *Claims, error) {
	return t.issue(userID, AccessTokenType, t.expiry)
}

// IssueRefreshToken issues a signed long-lived refresh token with a
// fresh jti for the given user
func (t *TokenIssuer) IssueRefreshToken(userID int64) (string, *Claims, error) {
	return t.issue(userID, RefreshTokenType, t.refreshExpiry)
}

func (t *TokenIssuer) issue(
	userID int64,
	tokenType TokenType,
	expiry time.Duration,
) (string, *Claims, error) {
	now := time.Now().UTC()
	tokenBuilder := jwt.NewBuilder()
	tokenBuilder.
		Audience(t.aud).
		IssuedAt(now).
		Expiration(now.Add(expiry)).
		Subject(strconv.FormatInt(userID, 10)).
		Issuer(t.iss).
		JwtID(uuid.NewString()).
		Claim(ClaimTokenUse, string(tokenType))
	token, err := tokenBuilder.Build()
	if err != nil {
		return "", nil, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(t.alg, t.privateKey))
	if err != nil {
		return "", nil, err
	}
	return string(signed), claimsFromJWT(token, userID), nil
}

func (t *TokenIssuer) Alg() string {
	return string(t.alg)
}

func (t *TokenIssuer) PrivateKey() jwk.Key {
	return t.privateKey
}

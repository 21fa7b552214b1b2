package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// clockSkew tolerates small drift between token issuer and server.
const clockSkew = time.Minute

// SessionVerifier validates HS256 session tokens whose "sub" claim is the
// board owner.
type SessionVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

// NewSessionVerifier creates a verifier. An empty secret rejects every token.
func NewSessionVerifier(secret, issuer string) *SessionVerifier {
	return &SessionVerifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation()),
		now:    time.Now,
	}
}

// Resolve implements Resolver.
func (v *SessionVerifier) Resolve(token string) (Principal, error) {
	if len(v.secret) == 0 || token == "" {
		return Principal{}, ErrUnauthorized
	}

	parsed, err := v.parser.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("invalid claims")
	}

	now := v.now().Unix()
	skew := int64(clockSkew.Seconds())
	if !claims.VerifyExpiresAt(now-skew, true) {
		return Principal{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now+skew, false) {
		return Principal{}, errors.New("token not valid yet")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Principal{}, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Principal{}, errors.New("missing sub")
	}
	return Principal{UserID: sub, Kind: KindSession}, nil
}

// Issue signs a session token for userID valid for ttl.
func (v *SessionVerifier) Issue(userID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("session secret is not configured")
	}
	now := v.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

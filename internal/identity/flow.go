package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const flowIssuer = "itqan-gateway/login-flow"

// Flow is the state carried from the authorize redirect to the callback.
type Flow struct {
	State      string `json:"st"`
	Nonce      string `json:"nn"`
	Verifier   string `json:"cv"`
	ReturnTo   string `json:"rt,omitempty"`
	Connection string `json:"cn,omitempty"`
}

type flowClaims struct {
	Flow
	jwt.RegisteredClaims
}

// FlowCodec signs login-flow state into a short-lived HS256 token so the
// gateway keeps no server-side state for half-finished logins.
type FlowCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewFlowCodec(key []byte, ttl time.Duration) *FlowCodec {
	return &FlowCodec{key: key, ttl: ttl, now: time.Now}
}

func (c *FlowCodec) Encode(f Flow) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.ttl)
	claims := flowClaims{
		Flow: f,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    flowIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign login flow: %w", err)
	}
	return token, expiresAt, nil
}

func (c *FlowCodec) Decode(token string) (*Flow, error) {
	if token == "" {
		return nil, models.ErrInvalidLoginState
	}

	claims := &flowClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(flowIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", models.ErrInvalidLoginState)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidLoginState, err)
	}
	if !parsed.Valid || claims.State == "" {
		return nil, models.ErrInvalidLoginState
	}

	return &claims.Flow, nil
}

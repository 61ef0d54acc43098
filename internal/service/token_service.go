package service

import (
	"errors"
	"fmt"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errUnknownActorType = errors.New("unknown actor type")

// actorClaims is the bearer token body: the subject is the actor id.
type actorClaims struct {
	ActorType domain.ActorType `json:"actor_type,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenService issues and checks HS256 actor tokens.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	parser *jwt.Parser
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Generate signs a token for an actor. Used by tests and local tooling;
// production tokens come from the identity service with the same claims.
func (s *JWTTokenService) Generate(actorID uuid.UUID, actorType domain.ActorType) (string, time.Time, error) {
	if actorType != domain.ActorTypeUser && actorType != domain.ActorTypeMerchant {
		return "", time.Time{}, fmt.Errorf("%w %q", errUnknownActorType, actorType)
	}

	now := time.Now()
	expiresAt := now.Add(s.expiry)
	claims := actorClaims{
		ActorType: actorType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign actor token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature, issuer and expiry and returns the actor the
// token speaks for. A token without actor_type is a user token.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	claims := &actorClaims{}
	if _, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("parse actor token: %w", err)
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("actor token subject %q: %w", claims.Subject, err)
	}

	switch claims.ActorType {
	case "":
		claims.ActorType = domain.ActorTypeUser
	case domain.ActorTypeUser, domain.ActorTypeMerchant:
	default:
		return nil, fmt.Errorf("%w %q", errUnknownActorType, claims.ActorType)
	}

	return &ports.TokenClaims{ActorID: actorID, ActorType: claims.ActorType}, nil
}

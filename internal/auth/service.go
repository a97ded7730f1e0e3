package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/noah-isme/store-bridge/internal/common"
	"github.com/noah-isme/store-bridge/internal/upstream"
)

const defaultMaxAge = 7 * 24 * time.Hour

// Provider proxies credential checks and user lookups to the upstream store.
type Provider interface {
	Login(ctx context.Context, username, password string) (string, error)
	ListUsers(ctx context.Context) ([]upstream.User, error)
}

// Service proxies authentication to the upstream store and reads identity
// claims from the tokens it issues.
type Service struct {
	provider  Provider
	validator TokenValidator
	now       func() time.Time
	logger    zerolog.Logger
}

// Config configures the auth service.
type Config struct {
	Provider  Provider
	ClockSkew time.Duration
	MaxAge    time.Duration
	Logger    zerolog.Logger
}

// User is the public user payload. Passwords never leave the service.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Phone     string `json:"phone,omitempty"`
}

// LoginResult bundles the upstream token with the matching user.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Claims holds the identity read from an upstream token.
type Claims struct {
	Subject  string
	Username string
	IssuedAt time.Time
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Provider == nil {
		return nil, errors.New("auth: provider is required")
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Service{
		provider: cfg.Provider,
		validator: TokenValidator{
			ClockSkew:  clockSkew,
			MaxAge:     maxAge,
			Algorithms: []jwa.SignatureAlgorithm{jwa.HS256, jwa.HS384, jwa.HS512, jwa.RS256},
		},
		now:    time.Now,
		logger: cfg.Logger,
	}, nil
}

// Login exchanges credentials for an upstream token and resolves the user record.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, common.BadRequest("", "username and password are required", nil)
	}
	token, err := s.provider.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			s.logger.Info().Str("username", username).Msg("login_rejected")
			return LoginResult{}, common.Unauthorized("invalid username or password", err)
		}
		return LoginResult{}, upstreamError(err)
	}
	users, err := s.provider.ListUsers(ctx)
	if err != nil {
		return LoginResult{}, upstreamError(err)
	}
	for _, u := range users {
		if u.Username == username {
			s.logger.Info().Str("username", username).Int("user_id", u.ID).Msg("login_succeeded")
			return LoginResult{Token: token, User: convertUser(u)}, nil
		}
	}
	return LoginResult{}, common.Unauthorized("user not found", nil)
}

// ListUsers returns every upstream user without credentials.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.provider.ListUsers(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	users := make([]User, 0, len(rows))
	for _, u := range rows {
		users = append(users, convertUser(u))
	}
	return users, nil
}

// ParseAccessToken reads and validates the claims of an upstream token.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.Unauthorized("missing token", nil)
	}
	message, err := jws.ParseString(trimmed)
	if err != nil {
		return Claims{}, common.Unauthorized("invalid token", err)
	}
	algorithm, err := tokenAlgorithm(message)
	if err != nil {
		return Claims{}, common.Unauthorized("invalid token", err)
	}
	claims, parsed, err := decodeClaims(message.Payload())
	if err != nil {
		return Claims{}, common.Unauthorized("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Claims{}, common.Unauthorized("invalid token", err)
	}
	return claims, nil
}

func tokenAlgorithm(message *jws.Message) (jwa.SignatureAlgorithm, error) {
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

// decodeClaims reads the payload leniently: the upstream encodes sub as a
// number, which jwt.Parse rejects, so registered claims are copied onto a
// fresh jwt.Token for validation.
func decodeClaims(payload []byte) (Claims, jwt.Token, error) {
	var raw struct {
		Sub  json.Number `json:"sub"`
		User string      `json:"user"`
		Iat  json.Number `json:"iat"`
		Exp  json.Number `json:"exp"`
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		var loose struct {
			Sub  string `json:"sub"`
			User string `json:"user"`
		}
		if lerr := json.Unmarshal(payload, &loose); lerr != nil {
			return Claims{}, nil, err
		}
		raw.Sub = json.Number(loose.Sub)
		raw.User = loose.User
	}
	subject := strings.TrimSpace(raw.Sub.String())
	if subject == "" {
		return Claims{}, nil, errors.New("auth: token missing subject")
	}
	tok := jwt.New()
	if err := tok.Set(jwt.SubjectKey, subject); err != nil {
		return Claims{}, nil, err
	}
	claims := Claims{Subject: subject, Username: raw.User}
	if iat, err := raw.Iat.Int64(); err == nil && iat > 0 {
		claims.IssuedAt = time.Unix(iat, 0)
		if err := tok.Set(jwt.IssuedAtKey, claims.IssuedAt); err != nil {
			return Claims{}, nil, err
		}
	}
	if exp, err := raw.Exp.Int64(); err == nil && exp > 0 {
		if err := tok.Set(jwt.ExpirationKey, time.Unix(exp, 0)); err != nil {
			return Claims{}, nil, err
		}
	}
	return claims, tok, nil
}

func convertUser(u upstream.User) User {
	return User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.Name.Firstname,
		LastName:  u.Name.Lastname,
		Phone:     u.Phone,
	}
}

func upstreamError(err error) error {
	return common.UpstreamUnavailable("upstream store unavailable", err)
}

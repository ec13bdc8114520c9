package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

const defaultAccessTTL = 15 * time.Minute

// Querier captures the database methods required by the auth service.
type Querier interface {
	CreateUser(ctx context.Context, arg store.CreateUserParams) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
	UpdateUserAccess(ctx context.Context, arg store.UpdateUserAccessParams) (store.User, error)
}

// Service coordinates registration, login, and token verification.
type Service struct {
	queries   Querier
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
}

// Config configures the auth service.
type Config struct {
	Queries        Querier
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// User is the safe subset of the account returned to clients.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Roles           []string  `json:"roles"`
	Tier            string    `json:"tier"`
	StudentVerified bool      `json:"student_verified"`
	FacultyVerified bool      `json:"faculty_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

// Claims is what a verified access token asserts about the caller.
type Claims struct {
	UserID string
	Roles  []string
	Tier   string
}

// LoginResult bundles the token issued after a successful login.
type LoginResult struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("auth: queries is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-store"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "store-frontend"
	}
	skew := cfg.ClockSkew
	if skew < 0 {
		skew = 0
	}
	return &Service{
		queries:   cfg.Queries,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
		issuer:   issuer,
		audience: audience,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a new customer account.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	if strings.TrimSpace(name) == "" {
		return User{}, common.BadRequest("VALIDATION_ERROR", "name is required")
	}
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" {
		return User{}, common.BadRequest("VALIDATION_ERROR", "email is required")
	}
	if len(password) < 8 {
		return User{}, common.BadRequest("VALIDATION_ERROR", "password must be at least 8 characters")
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Name:         strings.TrimSpace(name),
		Email:        normalizedEmail,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return User{}, common.Conflict("EMAIL_ALREADY_USED", "email is already registered")
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return convertUser(created), nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" || password == "" {
		return LoginResult{}, invalidCredentials()
	}
	u, err := s.queries.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		return LoginResult{}, invalidCredentials()
	}
	ok, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, invalidCredentials()
	}
	view := convertUser(u)
	token, expiry, err := s.signAccessToken(view)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	return LoginResult{User: view, AccessToken: token, AccessExpiry: expiry}, nil
}

// Me fetches the current authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	id := store.ToUUID(userID)
	if !id.Valid {
		return User{}, unauthorized(nil)
	}
	u, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		return User{}, unauthorized(err)
	}
	return convertUser(u), nil
}

// UpdateAccess lets an admin change roles and tier verification flags. The
// change takes effect on the user's next token, since claims are baked in at
// login.
func (s *Service) UpdateAccess(ctx context.Context, userID string, roles []string, studentVerified, facultyVerified bool) (User, error) {
	id := store.ToUUID(userID)
	if !id.Valid {
		return User{}, common.BadRequest("VALIDATION_ERROR", "invalid user id")
	}
	if len(roles) == 0 {
		roles = []string{"customer"}
	}
	u, err := s.queries.UpdateUserAccess(ctx, store.UpdateUserAccessParams{
		ID:              id,
		Roles:           roles,
		StudentVerified: studentVerified,
		FacultyVerified: facultyVerified,
	})
	if err != nil {
		return User{}, fmt.Errorf("update user access: %w", err)
	}
	return convertUser(u), nil
}

// ParseAccessToken validates an access token and returns the caller's claims.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, unauthorized(nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return Claims{}, unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Claims{}, unauthorized(err)
	}
	claims := Claims{UserID: parsed.Subject()}
	if v, ok := parsed.Get("roles"); ok {
		claims.Roles = toStringSlice(v)
	}
	if v, ok := parsed.Get("tier"); ok {
		if tier, ok := v.(string); ok {
			claims.Tier = tier
		}
	}
	return claims, nil
}

func (s *Service) signAccessToken(u User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(u.ID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim("roles", u.Roles).
		Claim("tier", u.Tier)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
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
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

// TierOf resolves the pricing tier from verification flags; faculty wins when
// both are set.
func TierOf(u store.User) pricing.Tier {
	switch {
	case u.FacultyVerified:
		return pricing.TierFaculty
	case u.StudentVerified:
		return pricing.TierStudent
	default:
		return pricing.TierNone
	}
}

func convertUser(u store.User) User {
	return User{
		ID:              store.UUIDString(u.ID),
		Name:            u.Name,
		Email:           u.Email,
		Roles:           u.Roles,
		Tier:            TierOf(u).String(),
		StudentVerified: u.StudentVerified,
		FacultyVerified: u.FacultyVerified,
		CreatedAt:       toTime(u.CreatedAt),
	}
}

func toStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}

func invalidCredentials() error {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", 401, nil)
}

func unauthorized(err error) error {
	return common.NewAppError("UNAUTHORIZED", "missing or invalid token", 401, err)
}

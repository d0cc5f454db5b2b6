package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
	minPasswordLen  = 8

	useAccess  = "access"
	useRefresh = "refresh"

	uniqueViolation = "23505"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshInvalid     = errors.New("refresh token invalid")
)

var (
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
	nowFn             = time.Now
)

// Service owns accounts and the tokens that identify the acting user on every
// other route. A refresh session is the refresh_tokens row keyed by the
// token's JWT ID; the token itself is never stored.
type Service struct {
	secret []byte
	db     db.Querier
}

// Claims is shared by access and refresh tokens. Use tells them apart so a
// refresh token cannot authenticate a request.
type Claims struct {
	UserID string `json:"user_id"`
	Use    string `json:"use,omitempty"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

func normalizeRegistration(req *RegisterRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	switch {
	case req.Email == "" || req.Username == "" || req.Password == "":
		return apperr.Validation("email, username and password are required")
	case !strings.Contains(req.Email, "@"):
		return apperr.Validation("email %q is not valid", req.Email)
	case len(req.Password) < minPasswordLen:
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, TokenResponse, error) {
	if err := normalizeRegistration(&req); err != nil {
		return User{}, TokenResponse{}, err
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenResponse{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		AvatarURL:    req.AvatarURL,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, username, password_hash, full_name, avatar_url)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.Username, user.PasswordHash, user.FullName, user.AvatarURL)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, TokenResponse{}, apperr.StateConflict("email or username already registered")
		}
		return User{}, TokenResponse{}, err
	}

	tokens, err := s.IssueTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// Login answers ErrInvalidCredentials for unknown emails and wrong passwords
// alike.
func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash, full_name, avatar_url, created_at, updated_at
		FROM users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(req.Email)))

	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FullName, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, TokenResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.IssueTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// IssueTokens signs a fresh access/refresh pair and opens the refresh session.
func (s *Service) IssueTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, _, err := s.sign(userID, useAccess, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	refresh, sessionID, err := s.sign(userID, useRefresh, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, expires_at)
		VALUES ($1,$2,$3)
	`, sessionID, userID, nowFn().Add(refreshTokenTTL)); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

// Rotate trades a refresh token for a new pair. The old session is revoked in
// the same statement that checks it, so a refresh token works exactly once.
func (s *Service) Rotate(ctx context.Context, refresh string) (TokenResponse, error) {
	claims, err := parseClaims(s.secret, refresh, useRefresh)
	if err != nil {
		return TokenResponse{}, ErrRefreshInvalid
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $3
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL AND expires_at > $3
	`, claims.ID, claims.UserID, nowFn())
	if err != nil {
		return TokenResponse{}, err
	}
	if tag.RowsAffected() == 0 {
		return TokenResponse{}, ErrRefreshInvalid
	}
	return s.IssueTokens(ctx, claims.UserID)
}

// RevokeRefreshToken ends a session. Revoking an already closed session is not
// an error; a token that does not verify is.
func (s *Service) RevokeRefreshToken(ctx context.Context, refresh string) error {
	claims, err := parseClaims(s.secret, refresh, useRefresh)
	if err != nil {
		return apperr.Validation("refresh token invalid")
	}
	_, err = s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, claims.ID, nowFn())
	return err
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := parseClaims(s.secret, token, useAccess)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// sign returns the signed token and its JWT ID.
func (s *Service) sign(userID, use string, ttl time.Duration) (string, string, error) {
	now := nowFn()
	claims := Claims{
		UserID: userID,
		Use:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return signed, claims.ID, nil
}

// parseClaims verifies token and checks it was minted for use. Tokens signed
// without a use are treated as access tokens.
func parseClaims(secret []byte, token, use string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	got := claims.Use
	if got == "" {
		got = useAccess
	}
	if got != use {
		return nil, errors.New("token used for the wrong purpose")
	}
	return claims, nil
}

package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"sort"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

const tokenIssuer = "kasirpos"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
	errInvalidToken       = errors.New("invalid or expired token")
)

// AuthManager issues and verifies bearer tokens for accounts kept in a
// store.UserStore.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    store.UserStore
	logger   *zap.Logger
	now      func() time.Time
}

type posClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users store.UserStore, logger *zap.Logger) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		logger:   logger.Named("auth"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	account, err := a.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}

	if !a.checkPassword(ctx, account, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !account.Active {
		return domain.LoginResponse{}, errInactiveAccount
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(account.Username, account.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        account.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// checkPassword verifies input against the stored credential. Accounts still
// holding a plain-text password are upgraded to bcrypt on their first
// successful login.
func (a *AuthManager) checkPassword(ctx context.Context, account *domain.UserAccount, input string) bool {
	if isPasswordHash(account.Password) {
		return bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(input)) == nil
	}
	if account.Password == "" || subtle.ConstantTimeCompare([]byte(account.Password), []byte(input)) != 1 {
		return false
	}

	hashed, err := hashPassword(input)
	if err != nil {
		a.logger.Warn("failed to hash legacy password", zap.String("username", account.Username), zap.Error(err))
		return true
	}
	if err := a.users.UpdateUserPassword(ctx, account.Username, hashed); err != nil {
		a.logger.Warn("failed to upgrade legacy password", zap.String("username", account.Username), zap.Error(err))
	}
	return true
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	name := strings.TrimSpace(req.Name)

	var fields []store.FieldError
	switch {
	case len(username) < 4:
		fields = append(fields, store.FieldError{Field: "username", Message: "must be at least 4 characters"})
	case strings.ContainsAny(username, " \t\r\n"):
		fields = append(fields, store.FieldError{Field: "username", Message: "must not contain spaces"})
	}
	if len(req.Password) < 6 {
		fields = append(fields, store.FieldError{Field: "password", Message: "must be at least 6 characters"})
	}
	if len(fields) > 0 {
		return domain.CashierUser{}, &store.ValidationError{Fields: fields}
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.CashierUser{}, err
	}

	now := a.now()
	err = a.users.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Name:      name,
		Password:  passwordHash,
		Role:      domain.RoleCashier,
		Active:    true,
		CreatedAt: now,
	})
	if err != nil {
		return domain.CashierUser{}, err
	}
	a.logger.Info("cashier created", zap.String("username", username))

	return domain.CashierUser{
		Username:  username,
		Name:      name,
		Role:      domain.RoleCashier,
		Active:    true,
		CreatedAt: now,
	}, nil
}

func (a *AuthManager) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	accounts, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.CashierUser, 0, len(accounts))
	for _, account := range accounts {
		if account.Role != domain.RoleCashier {
			continue
		}
		result = append(result, domain.CashierUser{
			Username:  account.Username,
			Name:      account.Name,
			Role:      account.Role,
			Active:    account.Active,
			CreatedAt: account.CreatedAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

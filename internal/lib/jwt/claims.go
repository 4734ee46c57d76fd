package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry токен не содержит claim exp.
var ErrNoExpiry = errors.New("token has no expiry")

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	Email                string `json:"email"` // Электронная почта пользователя
	jwt.RegisteredClaims        // Subject содержит ID пользователя
}

// GenerateToken создает JWT токен для пользователя, подписывая его секретным ключом.
func (j *MakerImpl) GenerateToken(userID, email string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken парсит JWT токен, проверяет его подпись и срок действия.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}

// Inspector читает claims токена без проверки подписи.
type Inspector struct {
	parser *jwt.Parser
	now    func() time.Time
}

// NewInspector создаёт Inspector.
func NewInspector() *Inspector {
	return &Inspector{
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

// ExpiresAt возвращает момент истечения токена.
func (i *Inspector) ExpiresAt(tokenStr string) (time.Time, error) {
	const op = "jwt.Inspector.ExpiresAt"
	var claims jwt.RegisteredClaims
	if _, _, err := i.parser.ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrNoExpiry)
	}
	return claims.ExpiresAt.Time, nil
}

// Expired сообщает, что токен является JWT с истёкшим exp.
// Непрозрачные токены и токены без exp истёкшими не считаются.
func (i *Inspector) Expired(tokenStr string) bool {
	exp, err := i.ExpiresAt(tokenStr)
	if err != nil {
		return false
	}
	return !i.now().Before(exp)
}

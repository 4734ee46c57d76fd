// Package password хеширует и проверяет пароли с помощью bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch пароль не совпадает с хешем.
var ErrMismatch = errors.New("password mismatch")

// GetHash возвращает bcrypt-хеш пароля со стоимостью по умолчанию.
func GetHash(password string) (string, error) {
	return GetHashWithCost(password, bcrypt.DefaultCost)
}

// GetHashWithCost возвращает bcrypt-хеш с заданной стоимостью.
// Значения вне допустимого диапазона bcrypt заменяет на DefaultCost.
func GetHashWithCost(password string, cost int) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash сравнивает bcrypt-хеш с введённым паролем.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Package models содержит доменные структуры клиентской сессии:
// идентичность пользователя, снимок подписки, тарифы и запросы регистрации.
package models

// UserIdentity описывает пользователя, вошедшего в систему.
// Создаётся при успешном входе или регистрации и не меняется до выхода.
type UserIdentity struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Valid сообщает, пригодна ли идентичность для восстановления сессии.
func (u UserIdentity) Valid() bool {
	return u.Email != ""
}

// RegisterRequest содержит поля формы регистрации.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"omitempty,max=100"`
}

// Credentials содержит данные для входа.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

package session

// State состояние сессии.
type State int

const (
	StateLoggedOut State = iota
	StateUnknownEntitlement
	StateEntitled
	StateNotEntitled
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "LOGGED_OUT"
	case StateUnknownEntitlement:
		return "LOGGED_IN_UNKNOWN_ENTITLEMENT"
	case StateEntitled:
		return "LOGGED_IN_ENTITLED"
	case StateNotEntitled:
		return "LOGGED_IN_NOT_ENTITLED"
	default:
		return "INVALID"
	}
}

// Reason причина завершения сессии.
type Reason string

const (
	// ReasonLogout пользователь вышел сам.
	ReasonLogout Reason = "logout"
	// ReasonUnauthorized сервер отклонил токен на одном из запросов.
	ReasonUnauthorized Reason = "unauthorized"
	// ReasonStorage новую сессию не удалось сохранить, прежняя закрыта.
	ReasonStorage Reason = "storage"
)

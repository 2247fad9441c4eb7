package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — событие отклонено, профиль не тронут.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound — профиль или модель для категории никогда не инициализировались.
	ErrNotFound = errors.New("not found")
	// ErrPersistence — сбой хранилища. Мутация в памяти уже применена.
	ErrPersistence = errors.New("persistence failure")
	// ErrModelUnavailable — банк моделей ещё не перешёл в состояние Ready.
	ErrModelUnavailable = errors.New("anomaly model unavailable")
)

// ValidationError описывает некорректное поле события.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError несёт операцию и аккаунт, на которых упало хранилище.
type PersistenceError struct {
	Op     string // load | save | list
	UserID string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

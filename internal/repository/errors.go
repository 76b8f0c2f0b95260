package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInsufficientBlocked = errors.New("blocked amount lower than release")
	ErrDuplicate           = errors.New("duplicate natural key")
)

// IsDuplicate reports a unique-constraint violation. gorm translates it when
// the dialect supports it; the message match covers dialects that do not.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "duplicate key")
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed means a conditional update matched no row: the
	// balance, usage or capacity guard did not hold at write time.
	ErrConditionFailed = errors.New("update condition not met")
	ErrDuplicate       = errors.New("duplicate record")
)

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "unique constraint") {
		return ErrDuplicate
	}
	return err
}

func requireRow(result *gorm.DB) error {
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}

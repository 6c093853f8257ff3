package repository

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"frozen-pos/pkg/apperror"
)

// dbErr maps gorm errors to domain kinds and wraps the rest with context.
func dbErr(err error, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(format+" not found", args...)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.Conflict(format+" already exists", args...)
	}
	return errors.Wrapf(err, format, args...)
}

package repository

import "errors"

// Sentinel errors the service layer maps onto apierrors.ErrorCode values.
var (
	ErrNotFound           = errors.New("repository: not found")
	ErrConfigConflict     = errors.New("repository: config conflict")
	ErrDuplicateExternal  = errors.New("repository: duplicate external_id")
	ErrQuotaExceeded      = errors.New("repository: quota exceeded")
)

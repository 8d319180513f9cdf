package service

import (
	"github.com/pkg/errors"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrInvalidCategory = errors.New("invalid tag category")
	ErrPolicyViolation = errors.New("post must carry at least one classification tag")
	// ErrNotFound also covers rows owned by somebody else.
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
)

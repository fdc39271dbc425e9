package weightedset

import (
	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrInvalidWeight  = errors.New("weights must be positive")
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("weight out of range")
)

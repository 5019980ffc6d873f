package satconnect

import "errors"

var (
	ErrAlreadyInitialized = errors.New("connector already initialized")
	ErrNotInitialized     = errors.New("connector not initialized")
	ErrNotConnected       = errors.New("connector not connected")
	ErrAlreadyConnected   = errors.New("connector already connected")
	ErrSameNetwork        = errors.New("already on the requested network")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)

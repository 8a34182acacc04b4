package market

import "errors"

var (
	ErrMarketNotFound        = errors.New("market not found")
	ErrInvalidResolutionTime = errors.New("resolution time must be in the future")
	ErrBatchMismatch         = errors.New("pairs and target prices must have equal length")
	ErrNotOwner              = errors.New("caller is not the registry owner")
)

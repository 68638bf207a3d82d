package dataset

import "errors"

// Error constants.
var (
	ErrReadDataset  = errors.New("read dataset failed")
	ErrWriteDataset = errors.New("write dataset failed")
	ErrInvalidCount = errors.New("invalid count")
	ErrFormat       = errors.New("unsupported export format")
)

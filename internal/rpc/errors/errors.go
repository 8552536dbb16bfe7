package errors

import sterrors "errors"

var (
	ErrClientRequired     = sterrors.New("shardlink: gateway client is required")
	ErrStoreRequired      = sterrors.New("shardlink: entity store is required")
	ErrConfigRequired     = sterrors.New("shardlink: configuration is required")
	ErrLoggerRequired     = sterrors.New("shardlink: logger is required")
	ErrProcessorRequired  = sterrors.New("shardlink: processor is required")
	ErrPrefixRequired     = sterrors.New("shardlink: namespace prefix is required")
	ErrReplyToRequired    = sterrors.New("shardlink: delivery has no reply-to destination")
	ErrAlreadyAcked       = sterrors.New("shardlink: delivery already acknowledged")
	ErrConnectionRequired = sterrors.New("shardlink: broker connection is required")
)

// ConfigValidationError wraps the error returned by Config.Validate so callers
// can distinguish configuration problems from runtime failures.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "shardlink: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

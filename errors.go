package mdk

// Error is a string type which satisfies the error interface so that sentinel
// errors can be constants.
type Error string

func (e Error) Error() string { return string(e) }

// Errors returned by the processing stages and the stateful ingestion layer.
// They are usually wrapped, so compare against errors.Cause(err).
const (
	ErrUnknownMetadata      = Error("unknown work unit metadata")
	ErrContainerCycle       = Error("cycle in container hierarchy")
	ErrMissingPipelineName  = Error("pipeline name must be provided if stateful ingestion is enabled")
	ErrUnknownStateProvider = Error("unknown state provider")
	ErrInvalidURN           = Error("invalid urn")
)

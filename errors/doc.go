// Package errors provides standardized error handling for TeleLog components.
//
// # Error Classification
//
// Errors are classified into three classes that drive handling policy:
//
//   - Transient: temporary conditions a transport may retry
//   - Invalid: contract violations in caller-supplied input, never retried
//   - Fatal: unrecoverable conditions that should stop processing
//
// All hard errors in the SDK core are synchronous and local to the call that
// caused them. Soft conditions (duplicate topic schemas, logging on a closed
// channel) are never surfaced as errors; they are reported through slog and
// the call proceeds or is absorbed.
//
// # Usage
//
// Wrap errors with component context at each layer boundary:
//
//	if err := store.Open(); err != nil {
//	    return errors.WrapTransient(err, "Buffer", "Stage", "open segment")
//	}
//
// Check sentinel conditions with errors.Is:
//
//	if errors.Is(err, errors.ErrOverflow) {
//	    // time value out of range
//	}
package errors

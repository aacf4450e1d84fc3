package engine

import "errors"

var (
	// ErrInvalidTiming rejects bookings in the past or inside the minimum
	// lead time. No store access has happened when it is returned.
	ErrInvalidTiming = errors.New("requested time is in the past or inside the minimum lead time")

	// ErrSlotUnavailable rejects a booking/reschedule whose interval
	// conflicts with an active appointment. Nothing was mutated.
	ErrSlotUnavailable = errors.New("requested slot is unavailable")

	ErrNotFound     = errors.New("appointment not found")
	ErrInvalidState = errors.New("operation not permitted in the appointment's current status")
	ErrForbidden    = errors.New("caller is not permitted to perform this operation")

	// ErrConcurrencyConflict means the atomic check-and-write lost a race.
	// The caller should retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrent booking conflict, retry the operation")
)

// ValidationError marks malformed input (bad date/time format, out-of-range
// duration). It is returned before any store access.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SlotUnavailableError carries the conflict report so callers can surface
// the conflicting appointments and the suggested alternatives.
type SlotUnavailableError struct {
	Reason string
	Report ConflictReport
}

func (e *SlotUnavailableError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return ErrSlotUnavailable.Error()
}

func (e *SlotUnavailableError) Is(target error) bool { return target == ErrSlotUnavailable }

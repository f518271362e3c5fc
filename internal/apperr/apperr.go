// Package apperr defines the tagged error result returned by every booking operation.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups codes by how a caller should react.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindState      Kind = "state"
	KindTransient  Kind = "transient"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
)

// Code names one specific failure.
type Code string

const (
	CodeInvalidTimeRange      Code = "invalid_time_range"
	CodeOutsideOperatingHours Code = "outside_operating_hours"
	CodePastDate              Code = "past_date"
	CodeSlotOverlap           Code = "slot_overlap"
	CodeBatchTooLarge         Code = "batch_too_large"
	CodeDateSpanTooLong       Code = "date_span_too_long"
	CodeInvalidInterval       Code = "invalid_interval"
	CodeInvalidSchedule       Code = "invalid_schedule"
	CodeInvalidCapacity       Code = "invalid_capacity"

	CodeCapacityExceeded     Code = "capacity_exceeded"
	CodeDuplicateReservation Code = "duplicate_reservation"
	CodeSlotInUse            Code = "slot_in_use"
	CodeNewSlotUnavailable   Code = "new_slot_unavailable"

	CodeInvalidStatus  Code = "invalid_status"
	CodeDeadlinePassed Code = "deadline_passed"
	CodeNotElapsed     Code = "not_elapsed"

	CodeTransientConflict Code = "transient_conflict"

	CodeSlotNotFound        Code = "slot_not_found"
	CodeReservationNotFound Code = "reservation_not_found"
	CodeBusinessNotFound    Code = "business_not_found"
	CodeMenuNotFound        Code = "menu_not_found"

	CodeNotOwner  Code = "not_owner"
	CodeForbidden Code = "forbidden"
)

var kinds = map[Code]Kind{
	CodeInvalidTimeRange:      KindValidation,
	CodeOutsideOperatingHours: KindValidation,
	CodePastDate:              KindValidation,
	CodeBatchTooLarge:         KindValidation,
	CodeDateSpanTooLong:       KindValidation,
	CodeInvalidInterval:       KindValidation,
	CodeInvalidSchedule:       KindValidation,
	CodeInvalidCapacity:       KindValidation,
	CodeSlotOverlap:           KindConflict,
	CodeCapacityExceeded:      KindConflict,
	CodeDuplicateReservation:  KindConflict,
	CodeSlotInUse:             KindConflict,
	CodeNewSlotUnavailable:    KindConflict,
	CodeInvalidStatus:         KindState,
	CodeDeadlinePassed:        KindState,
	CodeNotElapsed:            KindState,
	CodeTransientConflict:     KindTransient,
	CodeSlotNotFound:          KindNotFound,
	CodeReservationNotFound:   KindNotFound,
	CodeBusinessNotFound:      KindNotFound,
	CodeMenuNotFound:          KindNotFound,
	CodeNotOwner:              KindForbidden,
	CodeForbidden:             KindForbidden,
}

// Sentinels for errors.Is. Never return them directly; use New.
var (
	ErrInvalidTimeRange      = &Error{Kind: KindValidation, Code: CodeInvalidTimeRange}
	ErrOutsideOperatingHours = &Error{Kind: KindValidation, Code: CodeOutsideOperatingHours}
	ErrPastDate              = &Error{Kind: KindValidation, Code: CodePastDate}
	ErrBatchTooLarge         = &Error{Kind: KindValidation, Code: CodeBatchTooLarge}
	ErrDateSpanTooLong       = &Error{Kind: KindValidation, Code: CodeDateSpanTooLong}
	ErrInvalidInterval       = &Error{Kind: KindValidation, Code: CodeInvalidInterval}
	ErrInvalidSchedule       = &Error{Kind: KindValidation, Code: CodeInvalidSchedule}
	ErrInvalidCapacity       = &Error{Kind: KindValidation, Code: CodeInvalidCapacity}
	ErrSlotOverlap           = &Error{Kind: KindConflict, Code: CodeSlotOverlap}
	ErrCapacityExceeded      = &Error{Kind: KindConflict, Code: CodeCapacityExceeded}
	ErrDuplicateReservation  = &Error{Kind: KindConflict, Code: CodeDuplicateReservation}
	ErrSlotInUse             = &Error{Kind: KindConflict, Code: CodeSlotInUse}
	ErrNewSlotUnavailable    = &Error{Kind: KindConflict, Code: CodeNewSlotUnavailable}
	ErrInvalidStatus         = &Error{Kind: KindState, Code: CodeInvalidStatus}
	ErrDeadlinePassed        = &Error{Kind: KindState, Code: CodeDeadlinePassed}
	ErrNotElapsed            = &Error{Kind: KindState, Code: CodeNotElapsed}
	ErrTransientConflict     = &Error{Kind: KindTransient, Code: CodeTransientConflict}
	ErrSlotNotFound          = &Error{Kind: KindNotFound, Code: CodeSlotNotFound}
	ErrReservationNotFound   = &Error{Kind: KindNotFound, Code: CodeReservationNotFound}
	ErrBusinessNotFound      = &Error{Kind: KindNotFound, Code: CodeBusinessNotFound}
	ErrMenuNotFound          = &Error{Kind: KindNotFound, Code: CodeMenuNotFound}
	ErrNotOwner              = &Error{Kind: KindForbidden, Code: CodeNotOwner}
	ErrForbidden             = &Error{Kind: KindForbidden, Code: CodeForbidden}
)

// Entry identifies the offending item of a batch request.
type Entry struct {
	Index int    `json:"index"`
	Date  string `json:"date,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func (e Entry) String() string {
	s := fmt.Sprintf("entry %d", e.Index)
	if e.Date != "" {
		s += " " + e.Date
	}
	if e.Start != "" || e.End != "" {
		s += " " + e.Start + "-" + e.End
	}
	return s
}

// Error is the single error result type of the booking core.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    Code   `json:"code"`
	Message string `json:"message,omitempty"`
	Entry   *Entry `json:"entry,omitempty"`
	Status  string `json:"status,omitempty"`
	Err     error  `json:"-"`
}

// New builds an error for code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Kind: kinds[code], Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Entry != nil {
		b.WriteString(" (")
		b.WriteString(e.Entry.String())
		b.WriteString(")")
	}
	if e.Status != "" {
		b.WriteString(" [status=")
		b.WriteString(e.Status)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithEntry attaches the offending batch entry.
func (e *Error) WithEntry(entry Entry) *Error {
	e.Entry = &entry
	return e
}

// WithStatus attaches the current state of the entity.
func (e *Error) WithStatus(status string) *Error {
	e.Status = status
	return e
}

// Wrap records cause as the underlying error.
func (e *Error) Wrap(cause error) *Error {
	e.Err = cause
	return e
}

// As extracts the outermost *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of err, or "" for foreign errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

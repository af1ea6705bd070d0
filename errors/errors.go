package errors

import perrors "github.com/pingcap/errors"

// Codes for the rewriter's error taxonomy. Every failing step returns one
// of the sentinels below, possibly annotated with position context; the
// code survives annotation and can be recovered with Code.
const (
	ErrCodeIO uint16 = 1000 + iota
	ErrCodeCorruptEvent
	ErrCodeUnexpectedEventType
	ErrCodeEventTooBig
	ErrCodeNotFullRowImage
	ErrCodeNoTransactions
)

type UndoError struct {
	Code uint16
	error
}

func NewUndoError(code uint16, err error) error {
	return &UndoError{
		Code:  code,
		error: err,
	}
}

func NewUndoErrorMessage(code uint16, message string) error {
	return &UndoError{
		Code:  code,
		error: perrors.New(message),
	}
}

// Code returns the taxonomy code of err's cause, or zero for errors from
// outside the taxonomy.
func Code(err error) uint16 {
	if ue, ok := Cause(err).(*UndoError); ok {
		return ue.Code
	}
	return 0
}

var (
	ErrIO                  = NewUndoErrorMessage(ErrCodeIO, "short read or write")
	ErrCorruptEvent        = NewUndoErrorMessage(ErrCodeCorruptEvent, "corrupt event")
	ErrUnexpectedEventType = NewUndoErrorMessage(ErrCodeUnexpectedEventType, "unexpected event type")
	ErrEventTooBig         = NewUndoErrorMessage(ErrCodeEventTooBig, "event exceeds max event size")
	ErrNotFullRowImage     = NewUndoErrorMessage(ErrCodeNotFullRowImage, "presence bitmap is not a full row image")
	ErrNoTransactions      = NewUndoErrorMessage(ErrCodeNoTransactions, "no transactions to undo")
)

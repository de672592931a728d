package payroll

import "errors"

var (
	ErrRecordNotFound   = errors.New("payroll record not found")
	ErrEmployerNotFound = errors.New("employer not found")
	ErrNoPreviousPeriod = errors.New("no earlier confirmed period to compare with")
	ErrInvalidPeriod    = errors.New("period month must be between 1 and 12")
)

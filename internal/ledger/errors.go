package ledger

import "errors"

var (
	ErrUnknownOffice  = errors.New("unknown office")
	ErrEmptyQueue     = errors.New("no pending tickets for office")
	ErrDeleteConflict = errors.New("office still has tickets")
)

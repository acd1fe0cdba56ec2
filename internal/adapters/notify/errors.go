package notify

import "errors"

var (
	// ErrInvalidWindow is returned for unknown weekdays or hours outside 0-23.
	ErrInvalidWindow = errors.New("invalid notification window")
	// ErrNoRecipients is returned by the mail sender when nobody is addressed.
	ErrNoRecipients = errors.New("no notification recipients")
)

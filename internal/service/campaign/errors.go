package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound     = errors.New("campaign not found")
	ErrAlreadySent  = errors.New("campaign has already been sent")
	ErrNotSendable  = errors.New("campaign is not in a sendable status")
	ErrImmutable    = errors.New("sent campaigns cannot be modified or deleted")
	ErrNoRecipients = errors.New("no subscribers found for this campaign")
)

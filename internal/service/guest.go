package service

import (
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/wishly/internal/model"
)

const (
	maxGuestName       = 100
	maxGuestIdentifier = 128
)

// guestCheck validates the pseudonymous identity a guest presents.  It
// runs after the item lookup so an unknown item is reported as such.
func guestCheck(ic model.ItemContext, requesterUserID, identifier, name string) error {
	if requesterUserID != "" && requesterUserID == ic.OwnerID {
		return ErrOwnItem
	}
	if name == "" {
		return ErrGuestNameRequired
	}
	if utf8.RuneCountInString(name) > maxGuestName {
		return ErrGuestNameTooLong
	}
	return identifierCheck(identifier)
}

func identifierCheck(identifier string) error {
	if identifier == "" {
		return ErrGuestIdentifierRequired
	}
	if len(identifier) > maxGuestIdentifier {
		return ErrGuestIdentifierTooLong
	}
	return nil
}

func clean(s string) string { return strings.TrimSpace(s) }

// optional trims s and maps blank to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

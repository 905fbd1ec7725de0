package ospackage

import (
	"errors"
	"fmt"
)

// ErrInvalidID is returned for extension IDs that cannot name a file or
// directory on their own.
var ErrInvalidID = errors.New("invalid extension id")

// ValidateID accepts IDs made of ASCII letters, digits, '.', '_' and '-'.
// Chrome Web Store IDs ("[a-p]{32}") always pass; "." and ".." never do.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-':
		default:
			return fmt.Errorf("%w %q", ErrInvalidID, id)
		}
	}
	return nil
}

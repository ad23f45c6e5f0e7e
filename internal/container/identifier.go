package container

import "strings"

// ID is a validated container identifier. The only way to obtain one from
// untrusted input is ValidateID.
type ID string

func (id ID) String() string { return string(id) }

// placeholders are the strings attribute serialization produces for a missing
// value. They look like identifiers but name nothing.
var placeholders = map[string]struct{}{
	"undefined": {},
	"null":      {},
}

// ValidateID checks a candidate identifier read from an attribute bag. A nil
// candidate means the attribute was absent.
func ValidateID(candidate *string) (ID, error) {
	if candidate == nil {
		return "", &InvalidIDError{Reason: "absent"}
	}
	raw := strings.TrimSpace(*candidate)
	if raw == "" {
		return "", &InvalidIDError{Candidate: *candidate, Reason: "empty"}
	}
	if _, ok := placeholders[strings.ToLower(raw)]; ok {
		return "", &InvalidIDError{Candidate: raw, Reason: "placeholder"}
	}
	return ID(raw), nil
}

// ValidateString is ValidateID for values that are known to be present.
func ValidateString(candidate string) (ID, error) {
	return ValidateID(&candidate)
}

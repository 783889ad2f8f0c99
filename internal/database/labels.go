package database

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// reservedChars are rejected in label names and sample ids so that every name
// is a valid path segment on the filesystems we care about.
const reservedChars = `/\<>:"|?*`

// NormalizeLabel validates a label name and returns its canonical (NFC) form.
// Labels are case-sensitive. A valid label is a single non-empty path segment
// that does not start with a dot and contains no separators, reserved or
// control characters.
func NormalizeLabel(label string) (string, error) {
	name := norm.NFC.String(label)
	if err := validateSegment(name); err != nil {
		return "", fmt.Errorf("%w %q: %s", ErrInvalidLabel, label, err)
	}
	return name, nil
}

// ValidateSampleID checks that id can be used as a sample file name.
func ValidateSampleID(id string) error {
	if err := validateSegment(id); err != nil {
		return fmt.Errorf("%w %q: %s", ErrInvalidSampleID, id, err)
	}
	if id == CentroidName {
		return fmt.Errorf("%w %q: reserved name", ErrInvalidSampleID, id)
	}
	return nil
}

type segmentError string

func (e segmentError) Error() string { return string(e) }

func validateSegment(s string) error {
	switch {
	case s == "":
		return segmentError("empty")
	case len(s) > MaxLabelLength:
		return segmentError(fmt.Sprintf("longer than %d bytes", MaxLabelLength))
	case strings.HasPrefix(s, "."):
		return segmentError("must not start with a dot")
	case strings.TrimSpace(s) != s:
		return segmentError("must not start or end with whitespace")
	case strings.ContainsAny(s, reservedChars):
		return segmentError("contains a path separator or reserved character")
	}
	for _, r := range s {
		if r == 0 || unicode.IsControl(r) {
			return segmentError("contains a control character")
		}
		if r == unicode.ReplacementChar {
			return segmentError("is not valid UTF-8")
		}
	}
	return nil
}

// Package said validates and decodes South African identity numbers.
//
// A South African ID number is a 13 digit string of the form YYMMDD-GGGG-SCZ:
// birth date, gender/sequence block (0000-4999 female, 5000-9999 male),
// citizenship digit (0 citizen, 1 permanent resident), a historical
// classification digit accepted as-is, and a Luhn check digit.
package said

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidFormat   = errors.New("id number must be 13 digits")
	ErrInvalidDate     = errors.New("id number contains an invalid birth date")
	ErrInvalidChecksum = errors.New("id number checksum mismatch")
)

// Identity holds the facts derivable from a valid ID number. These are
// pure functions of the digits and are never authoritative on their own.
type Identity struct {
	DateOfBirth time.Time
	Gender      string // "M" or "F"
	Citizen     bool
}

// Validate reports whether id is a well formed South African ID number.
// It is a pure function of the input and the current clock.
func Validate(id string) bool {
	_, err := decode(id, time.Now())
	return err == nil
}

// Decode extracts date of birth, gender and citizenship from id.
// The returned error distinguishes bad shape, bad date and bad checksum
// so callers can tailor messaging; unauthenticated surfaces must collapse
// all three into a generic rejection.
func Decode(id string) (Identity, error) {
	return decode(id, time.Now())
}

// Format returns id grouped as YYMMDD-GGGG-SCZ.
func Format(id string) (string, error) {
	cleaned := clean(id)
	if _, err := decode(cleaned, time.Now()); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", cleaned[0:6], cleaned[6:10], cleaned[10:13]), nil
}

// Age returns the age in whole years at the given moment.
func Age(id string, now time.Time) (int, error) {
	ident, err := decode(id, now)
	if err != nil {
		return 0, err
	}
	dob := ident.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, nil
}

func clean(id string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, id)
}

func decode(id string, now time.Time) (Identity, error) {
	cleaned := clean(id)
	if len(cleaned) != 13 {
		return Identity{}, ErrInvalidFormat
	}
	digits := make([]int, 13)
	for i, r := range cleaned {
		if r < '0' || r > '9' {
			return Identity{}, ErrInvalidFormat
		}
		digits[i] = int(r - '0')
	}

	dob, err := resolveBirthDate(cleaned, now)
	if err != nil {
		return Identity{}, err
	}

	if checkDigit(digits[:12]) != digits[12] {
		return Identity{}, ErrInvalidChecksum
	}

	gender := "F"
	if genderBlock(digits) >= 5000 {
		gender = "M"
	}
	return Identity{
		DateOfBirth: dob,
		Gender:      gender,
		Citizen:     digits[10] == 0,
	}, nil
}

func genderBlock(digits []int) int {
	return digits[6]*1000 + digits[7]*100 + digits[8]*10 + digits[9]
}

// resolveBirthDate maps the two digit year onto a full year using a rolling
// cutoff: years at most currentYear%100-25 fall in the 2000s, the rest in
// the 1900s. The cutoff drifts with the clock; it is kept in this one place
// so it can be swapped for a fixed reference without touching validation.
func resolveBirthDate(cleaned string, now time.Time) (time.Time, error) {
	yy := int(cleaned[0]-'0')*10 + int(cleaned[1]-'0')
	month := int(cleaned[2]-'0')*10 + int(cleaned[3]-'0')
	day := int(cleaned[4]-'0')*10 + int(cleaned[5]-'0')

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrInvalidDate
	}

	year := yy + 1900
	if yy <= now.Year()%100-25 {
		year = yy + 2000
	}

	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2), so a roundtrip
	// mismatch means the calendar date does not exist.
	if dob.Year() != year || dob.Month() != time.Month(month) || dob.Day() != day {
		return time.Time{}, ErrInvalidDate
	}
	if dob.After(now) {
		return time.Time{}, ErrInvalidDate
	}
	return dob, nil
}

// checkDigit computes the Luhn check digit over the first 12 digits,
// scanning right to left and doubling every second digit.
func checkDigit(digits []int) int {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d = d%10 + 1
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

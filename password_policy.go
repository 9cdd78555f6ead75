package accounts

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// commonPasswords is a short head of the usual breached-password lists.
// Comparison is case-insensitive.
var commonPasswords = []string{
	"password", "password1", "password123", "passw0rd", "12345678",
	"123456789", "1234567890", "qwerty123", "qwertyuiop", "iloveyou",
	"admin123", "letmein1", "welcome1", "sunshine", "princess",
	"football", "baseball", "monkey123", "dragon123", "superman",
	"trustno1", "starwars", "whatever", "computer", "internet",
	"11111111", "00000000", "aa123456", "abc12345", "password!",
}

// PasswordPolicy mirrors the usual account password validators: a length
// floor, a purely-numeric rejection, a common-password list, and a
// similarity check against the owner's attributes.
type PasswordPolicy struct {
	MinLength int
	Common    []string
}

// DefaultPasswordPolicy returns the policy the flows use unless overridden.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength: 8,
		Common:    commonPasswords,
	}
}

// Rules returns the policy as ozzo rules. userAttributes are values the
// password must not be too similar to (email, names).
func (p PasswordPolicy) Rules(userAttributes ...string) []validation.Rule {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = 8
	}

	common := p.Common
	if common == nil {
		common = commonPasswords
	}

	return []validation.Rule{
		validation.Required,
		validation.Length(minLen, 128),
		validation.By(notEntirelyNumeric),
		validation.By(notCommonPassword(common)),
		validation.By(notSimilarToAttributes(userAttributes)),
	}
}

// Validate checks password against every rule, returning the first failure.
func (p PasswordPolicy) Validate(password string, userAttributes ...string) error {
	return validation.Validate(password, p.Rules(userAttributes...)...)
}

func notEntirelyNumeric(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return errors.New("password cannot be entirely numeric")
}

func notCommonPassword(common []string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		lowered := strings.ToLower(s)
		for _, candidate := range common {
			if lowered == candidate {
				return errors.New("password is too common")
			}
		}
		return nil
	}
}

// notSimilarToAttributes rejects passwords that contain, or are contained
// in, any of the user's identifying values. Attribute fragments shorter
// than 4 runes are ignored to avoid rejecting on initials.
func notSimilarToAttributes(attributes []string) validation.RuleFunc {
	return func(value any) error {
		s := strings.ToLower(strings.TrimSpace(valueToString(value)))
		if s == "" {
			return nil
		}

		for _, attr := range attributes {
			for _, part := range splitAttribute(attr) {
				if len([]rune(part)) < 4 {
					continue
				}
				if strings.Contains(s, part) || strings.Contains(part, s) {
					return errors.New("password is too similar to your personal information")
				}
			}
		}
		return nil
	}
}

func splitAttribute(attr string) []string {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if attr == "" {
		return nil
	}

	parts := strings.FieldsFunc(attr, func(r rune) bool {
		return r == '@' || r == '.' || r == '_' || r == '-' || r == '+' || r == ' '
	})

	return append(parts, attr)
}

func valueToString(value any) string {
	s, _ := value.(string)
	return s
}

package user

import (
	"fmt"
	"strings"
	"unicode"
)

// PasswordPolicy validates passwords against the signup rules:
// a minimum length plus at least one upper case letter, one lower
// case letter, one digit and one punctuation character
type PasswordPolicy struct {
	MinLength int
}

func NewPasswordPolicy(minLength int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = 8
	}
	return &PasswordPolicy{MinLength: minLength}
}

// Validate returns every violated rule so the caller can report all
// of them at once, an empty slice means the password passes
func (p *PasswordPolicy) Validate(password string) []string {
	var violations []string
	if len(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("Şifre en az %d karakter olmalıdır", p.MinLength))
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper {
		violations = append(violations, "Şifre en az bir büyük harf içermelidir")
	}
	if !lower {
		violations = append(violations, "Şifre en az bir küçük harf içermelidir")
	}
	if !digit {
		violations = append(violations, "Şifre en az bir rakam içermelidir")
	}
	if !special {
		violations = append(violations, "Şifre en az bir özel karakter içermelidir")
	}
	return violations
}

// Describe joins the violations into a single user facing message
func (p *PasswordPolicy) Describe(violations []string) string {
	return strings.Join(violations, ", ")
}

package password

import "unicode/utf8"

// Validate reports ErrPasswordTooShort or ErrPasswordTooLong.
func (c Config) Validate(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	return nil
}

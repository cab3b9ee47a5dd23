package validation

import (
	"errors"
	"unicode/utf8"
)

const (
	MaxNameLength        = 100
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxBioLength         = 500
	MaxKPINameLength     = 100
	MaxUnitLength        = 20
)

// ValidateName validates a profile display name (already normalized)
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.New("name is too long (max 100 characters)")
	}
	return nil
}

// ValidateTitle validates a quest title (already normalized)
func ValidateTitle(title string) error {
	if title == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return errors.New("title is too long (max 200 characters)")
	}
	return nil
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return errors.New("description is too long (max 5000 characters)")
	}
	return nil
}

func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return errors.New("bio is too long (max 500 characters)")
	}
	return nil
}

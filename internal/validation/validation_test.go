package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"too short", "short", ErrPasswordTooShort},
		{"common pattern", "mypassword-is-long", ErrPasswordCommon},
		{"too long", string(make([]byte, 73)), ErrPasswordTooLong},
		{"ok", "correct-horse-battery", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.want)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@example.com", "first.last@sub.example.org"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) unexpected error: %v", email, err)
		}
	}

	invalid := []string{"", "not-an-email", "Name <a@example.com>"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q) expected error", email)
		}
	}
}

func TestNormalize(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune
	got := Normalize("  Cafe\u0301  ")
	if got != "Caf\u00e9" {
		t.Fatalf("Normalize = %q, want %q", got, "Caf\u00e9")
	}
}

func TestStructLinks(t *testing.T) {
	type req struct {
		Website *string `json:"websiteUrl" validate:"omitempty,max=2048,link"`
		Avatar  *string `json:"avatarUrl" validate:"omitempty,max=2048,avatar"`
	}

	valid := []string{"", "https://github.com/someone", "http://example.com/a?b=c"}
	for _, raw := range valid {
		if err := Struct(req{Website: &raw}); err != nil {
			t.Errorf("website %q rejected: %v", raw, err)
		}
	}

	for _, raw := range []string{"github.com/someone", "javascript:alert(1)", "ftp://example.com", "/uploads/x.png"} {
		err := Struct(req{Website: &raw})
		if err == nil || err.Error() != "websiteUrl must be a valid URL" {
			t.Errorf("website %q: got %v", raw, err)
		}
	}

	for _, raw := range []string{"", "/uploads/public/avatars/a.png", "https://cdn.example.com/a.png"} {
		if err := Struct(req{Avatar: &raw}); err != nil {
			t.Errorf("avatar %q rejected: %v", raw, err)
		}
	}

	for _, raw := range []string{"/etc/passwd", "data:image/png;base64,AAAA"} {
		err := Struct(req{Avatar: &raw})
		if err == nil || err.Error() != "avatarUrl must be a valid URL" {
			t.Errorf("avatar %q: got %v", raw, err)
		}
	}

	long := "https://example.com/" + strings.Repeat("a", 2048)
	if err := Struct(req{Website: &long}); err == nil {
		t.Error("overlong url accepted")
	}
}

func TestStruct(t *testing.T) {
	type req struct {
		Title  string `json:"title" validate:"required,max=5"`
		Status string `json:"status" validate:"omitempty,oneof=active paused"`
	}

	if err := Struct(req{Title: "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Struct(req{})
	if err == nil || err.Error() != "title is required" {
		t.Fatalf("got %v, want title is required", err)
	}

	err = Struct(req{Title: "ok", Status: "done"})
	if err == nil || err.Error() != "status must be one of: active paused" {
		t.Fatalf("got %v", err)
	}
}

func TestStructOptionalPointers(t *testing.T) {
	type req struct {
		Year   *int    `json:"year" validate:"omitempty,min=1,max=10"`
		Branch *string `json:"branch" validate:"omitempty,max=3"`
	}

	if err := Struct(req{}); err != nil {
		t.Fatalf("nil pointers should pass: %v", err)
	}

	year := 11
	err := Struct(req{Year: &year})
	if err == nil || err.Error() != "year must be at most 10" {
		t.Fatalf("got %v, want year must be at most 10", err)
	}

	branch := "physics"
	err = Struct(req{Branch: &branch})
	if err == nil || err.Error() != "branch is too long (max 3)" {
		t.Fatalf("got %v", err)
	}
}

func TestValidateTitle(t *testing.T) {
	if err := ValidateTitle(""); err == nil {
		t.Fatal("empty title should fail")
	}
	long := make([]rune, MaxTitleLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := ValidateTitle(string(long)); err == nil {
		t.Fatal("overlong title should fail")
	}
	if err := ValidateTitle("Read 12 books"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewIdentity(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	got := NewIdentity(RoleTeacher, now)
	if got != "teacher-1700000000123" {
		t.Fatalf("NewIdentity = %q", got)
	}
	if !strings.HasPrefix(string(NewIdentity(RoleStudent, now)), "student-") {
		t.Fatal("student identity must carry the role prefix")
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"teacher", "student", "admin"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q) = %v", s, err)
		}
	}
	if _, err := ParseRole("janitor"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("ParseRole(janitor) = %v, want ErrUnknownRole", err)
	}
	if _, err := ParseRole(""); err == nil {
		t.Error("empty role must not parse")
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLen)); err != nil {
		t.Errorf("name at limit rejected: %v", err)
	}
	if err := ValidateDisplayName(""); err != nil {
		t.Errorf("empty name rejected: %v", err)
	}
	if err := ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLen+1)); !errors.Is(err, ErrDisplayNameTooLong) {
		t.Errorf("over-limit name = %v, want ErrDisplayNameTooLong", err)
	}
}

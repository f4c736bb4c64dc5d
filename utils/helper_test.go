package utils

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestDereferencePtr(t *testing.T) {
	if got := DereferencePtr[bool](nil, false); got != false {
		t.Fatalf("nil pointer should yield fallback, got %v", got)
	}
	v := true
	if got := DereferencePtr(&v, false); got != true {
		t.Fatalf("non-nil pointer should yield its value, got %v", got)
	}
	if got := DereferencePtr[string](nil, "anon"); got != "anon" {
		t.Fatalf("string fallback = %q; want anon", got)
	}
}

func TestProcessValidationErrors(t *testing.T) {
	type form struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required"`
	}

	err := validator.New().Struct(form{Email: "not-an-email"})
	if err == nil {
		t.Fatalf("expected validation failure")
	}

	fields := ProcessValidationErrors(err)
	if fields["Email"] != "email" {
		t.Fatalf("Email tag = %q; want email", fields["Email"])
	}
	if fields["Password"] != "required" {
		t.Fatalf("Password tag = %q; want required", fields["Password"])
	}
}

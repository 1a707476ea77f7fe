// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package validation

import (
	"strings"
	"testing"
)

type testContactRequest struct {
	Email     string `validate:"required,email"`
	FirstName string `validate:"max=10"`
}

type testSendRequest struct {
	Mode string `validate:"required,oneof=blast individual"`
}

func TestValidateStructPasses(t *testing.T) {
	req := testContactRequest{Email: "ada@example.com", FirstName: "Ada"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected valid struct, got %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	req := testContactRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for missing email")
	}
	if !strings.Contains(err.Error(), "Email is required") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestValidateStructEmail(t *testing.T) {
	req := testContactRequest{Email: "not-an-email"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for malformed email")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "valid email address") {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestValidateStructMaxString(t *testing.T) {
	req := testContactRequest{Email: "ada@example.com", FirstName: strings.Repeat("x", 11)}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for long first name")
	}
	if !strings.Contains(err.Error(), "at most 10 characters") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestValidateStructOneof(t *testing.T) {
	req := testSendRequest{Mode: "broadcast"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for bad mode")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	req := testContactRequest{Email: "", FirstName: strings.Repeat("x", 11)}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields detail, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 field details, got %d", len(fields))
	}
}

package validator

import (
	"testing"
)

type testPayload struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Message    string   `json:"message" validate:"required"`
	Recipients []string `json:"recipients" validate:"required,min=1"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Title:      "New task",
		Message:    "A task was assigned to you",
		Recipients: []string{"nurse-1"},
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Title:      "",
		Message:    "",
		Recipients: nil,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundRecipients := false
	for _, v := range vErrs {
		if v.Field == "recipients" {
			foundRecipients = true
		}
	}

	if !foundRecipients {
		t.Fatal("expected recipients field to be present in validation errors")
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "title", Tag: "required"},
		{Field: "message", Tag: "max", Param: "1000"},
	}

	msg := errs.Error()
	if msg != "title failed on required; message failed on max=1000" {
		t.Fatalf("unexpected message: %s", msg)
	}

	if (ValidationErrors{}).Error() != "validation failed" {
		t.Fatal("expected fallback message for empty error set")
	}
}

package core

import (
	"errors"
	"testing"

	"contentpilot/internal/types"
)

type testScheduleRequest struct {
	ContentID string         `json:"content_id" validate:"required"`
	Platform  types.Platform `json:"platform" validate:"required,platform"`
	Count     int            `json:"count" validate:"min=0,max=24"`
}

type testQueueRequest struct {
	Platforms []types.Platform  `json:"platforms" validate:"required,min=1,unique,dive,platform"`
	Type      types.ContentType `json:"type" validate:"required,content_type"`
}

type testAutopilotRequest struct {
	Velocity types.VelocityLevel `json:"velocity" validate:"omitempty,velocity"`
	Timezone string              `json:"timezone" validate:"is_timezone"`
}

func TestValidateStruct_Success(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(testScheduleRequest{ContentID: "cnt_1", Platform: types.PlatformWordPress, Count: 5})
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestValidateStruct_FirstFailureSetsCode(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(testScheduleRequest{Platform: "myspace", Count: 99})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("expected %s, got %s", types.ErrCodeValidationMissingField, appErr.Code)
	}
	if appErr.Message != "content_id is required" {
		t.Errorf("expected json field name in message, got %q", appErr.Message)
	}

	errs, ok := appErr.Details["validation_errors"].([]ValidationError)
	if !ok {
		t.Fatalf("expected []ValidationError details, got %T", appErr.Details["validation_errors"])
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %+v", len(errs), errs)
	}
	if errs[1].Field != "platform" || errs[1].Code != string(types.ErrCodeValidationInvalidPlatform) {
		t.Errorf("unexpected platform error %+v", errs[1])
	}
	if errs[2].Code != string(types.ErrCodeValidationInvalidCount) {
		t.Errorf("unexpected count error %+v", errs[2])
	}
}

func TestValidateStructResult_DomainTags(t *testing.T) {
	v := NewValidator(testLogger())

	tests := []struct {
		name string
		in   any
		code types.ErrorCode
	}{
		{"empty platforms", testQueueRequest{Type: types.ContentBlog}, types.ErrCodeValidationMissingField},
		{"unknown platform", testQueueRequest{Platforms: []types.Platform{"myspace"}, Type: types.ContentBlog}, types.ErrCodeValidationInvalidPlatform},
		{"duplicate platform", testQueueRequest{Platforms: []types.Platform{types.PlatformYouTube, types.PlatformYouTube}, Type: types.ContentYouTubeShort}, types.ErrCodeValidationDuplicate},
		{"unknown content type", testQueueRequest{Platforms: []types.Platform{types.PlatformWordPress}, Type: "podcast"}, types.ErrCodeValidationInvalidContent},
		{"unknown velocity", testAutopilotRequest{Velocity: "turbo"}, types.ErrCodeValidationVelocity},
		{"unknown timezone", testAutopilotRequest{Timezone: "Mars/Olympus"}, types.ErrCodeValidationInvalidTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateStructResult(tt.in)
			if result.IsValid() {
				t.Fatal("expected invalid result")
			}
			if result.Errors[0].Code != string(tt.code) {
				t.Errorf("expected %s, got %s", tt.code, result.Errors[0].Code)
			}
		})
	}
}

func TestValidateStructResult_ValidOptionalFields(t *testing.T) {
	v := NewValidator(testLogger())

	if r := v.ValidateStructResult(testAutopilotRequest{}); !r.IsValid() {
		t.Errorf("empty optional fields should pass, got %+v", r.Errors)
	}
	if r := v.ValidateStructResult(testAutopilotRequest{Velocity: types.VelocityHigh, Timezone: "America/New_York"}); !r.IsValid() {
		t.Errorf("expected valid, got %+v", r.Errors)
	}
}

func TestTagToErrorCode(t *testing.T) {
	cases := map[string]types.ErrorCode{
		"required":     types.ErrCodeValidationMissingField,
		"platform":     types.ErrCodeValidationInvalidPlatform,
		"content_type": types.ErrCodeValidationInvalidContent,
		"velocity":     types.ErrCodeValidationVelocity,
		"is_timezone":  types.ErrCodeValidationInvalidTimezone,
		"unique":       types.ErrCodeValidationDuplicate,
		"max":          types.ErrCodeValidationInvalidCount,
		"email":        types.ErrCodeValidationInvalidField,
	}
	for tag, want := range cases {
		if got := tagToErrorCode(tag); got != string(want) {
			t.Errorf("tagToErrorCode(%q) = %q, want %q", tag, got, want)
		}
	}
}

// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/insightstream/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct_ProcessingEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     models.ProcessingEvent
		wantField string
	}{
		{
			name:  "valid",
			event: models.ProcessingEvent{EventType: models.EventTypeNewEmail, UserID: "u1", Priority: 5},
		},
		{
			name:  "boundary priorities",
			event: models.ProcessingEvent{EventType: models.EventTypeUserAction, UserID: "u1", Priority: 10},
		},
		{
			name:      "unknown type",
			event:     models.ProcessingEvent{EventType: "bogus", UserID: "u1", Priority: 5},
			wantField: "EventType",
		},
		{
			name:      "missing user",
			event:     models.ProcessingEvent{EventType: models.EventTypeNewEmail, Priority: 5},
			wantField: "UserID",
		},
		{
			name:      "priority too low",
			event:     models.ProcessingEvent{EventType: models.EventTypeNewEmail, UserID: "u1", Priority: 0},
			wantField: "Priority",
		},
		{
			name:      "priority too high",
			event:     models.ProcessingEvent{EventType: models.EventTypeNewEmail, UserID: "u1", Priority: 11},
			wantField: "Priority",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.event)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() error = %v", err)
				}
				return
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateStruct() error = %v, want *Error", err)
			}
			if verr.Fields[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Fields[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidateStruct_Messages(t *testing.T) {
	type request struct {
		Name   string               `validate:"required"`
		Short  string               `validate:"max=3"`
		Count  int                  `validate:"min=1"`
		Kind   string               `validate:"oneof=a b"`
		Status models.InsightStatus `validate:"insight_status"`
	}

	err := ValidateStruct(&request{Short: "toolong", Kind: "c", Status: "bogus"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("ValidateStruct() error = %v, want *Error", err)
	}

	want := map[string]string{
		"Name":   "Name is required",
		"Short":  "Short must be at most 3 characters",
		"Count":  "Count must be at least 1",
		"Kind":   "Kind must be one of: a b",
		"Status": "Status must be one of: new viewed acted_on dismissed",
	}
	if len(verr.Fields) != len(want) {
		t.Fatalf("got %d field errors, want %d: %v", len(verr.Fields), len(want), verr)
	}
	for _, f := range verr.Fields {
		if f.Message != want[f.Field] {
			t.Errorf("%s message = %q, want %q", f.Field, f.Message, want[f.Field])
		}
	}

	if !strings.Contains(verr.Error(), "Name is required") {
		t.Errorf("Error() = %q", verr.Error())
	}
	details := verr.Details()
	if fields, ok := details["fields"].([]map[string]interface{}); !ok || len(fields) != 5 {
		t.Errorf("Details() = %v", details)
	}
}

func TestError_SingleFieldDetails(t *testing.T) {
	e := &Error{Fields: []FieldError{{Field: "UserID", Tag: "required", Message: "UserID is required"}}}
	details := e.Details()
	if details["field"] != "UserID" || details["tag"] != "required" {
		t.Errorf("Details() = %v", details)
	}

	empty := &Error{}
	if empty.Error() != "validation failed" {
		t.Errorf("empty Error() = %q", empty.Error())
	}
}

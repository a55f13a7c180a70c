// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package attendee

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// idPattern matches identifiers that are safe to embed in store keys.
// The store lays one event out as the key range att:<eventID>:<attendeeID>,
// so a colon inside an identifier would let one event's scan prefix match
// another event's rows. Allowed: letters, digits, dots, hyphens,
// underscores; 1-64 characters; must start alphanumeric.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,63}$`)

// attendeeValidate is the shared validator instance for domain types and
// request payloads. Initialized in init() with the custom domain validators.
var attendeeValidate *validator.Validate

func init() {
	attendeeValidate = validator.New()
	_ = attendeeValidate.RegisterValidation("safeid", validateSafeID)
}

// validateSafeID accepts identifiers matching idPattern.
func validateSafeID(fl validator.FieldLevel) bool {
	return idPattern.MatchString(fl.Field().String())
}

// ValidateID checks that a caller-supplied identifier is safe to embed in a
// store key. The field name is used in the error message.
//
// Example:
//
//	if err := attendee.ValidateID("event id", eventID); err != nil {
//	    return err
//	}
func ValidateID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !idPattern.MatchString(value) {
		return fmt.Errorf("invalid %s %q: must be 1-64 letters, digits, dots, hyphens, or underscores", field, value)
	}
	return nil
}

// Validate runs the shared validator against any tagged struct. EventConfig
// uses this before its configuration is stored.
func Validate(v any) error {
	return attendeeValidate.Struct(v)
}

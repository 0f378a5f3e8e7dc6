// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package validation provides request struct validation using
// go-playground/validator v10. It keeps a thread-safe singleton validator
// and translates failures to the invalid-input errors the API layer maps
// to 400 responses.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the singleton validator instance. Field names in
// errors come from json tags so they match what the client sent.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct validates s and reports the first failing field as an
// invalid-input error.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewInvalidInput("request", "%v", err)
	}
	fe := fieldErrs[0]
	return models.NewInvalidInput(fieldPath(fe), "%s", translateError(fe))
}

// fieldPath strips the struct type prefix from the namespace, leaving the
// json path into the request body.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"datetime": "%s must be a valid RFC3339 timestamp",
	"uuid":     "%s must be a valid UUID",
	"min":      "%s is below the minimum of %s",
	"max":      "%s exceeds the maximum of %s",
	"gte":      "%s must be at least %s",
	"lte":      "%s must be at most %s",
	"oneof":    "%s must be one of: %s",
}

func translateError(fe validator.FieldError) string {
	template, ok := errorMessageTemplates[fe.Tag()]
	if !ok {
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
	if strings.Count(template, "%s") == 2 {
		return strings.Replace(strings.Replace(template, "%s", fe.Field(), 1), "%s", fe.Param(), 1)
	}
	return strings.Replace(template, "%s", fe.Field(), 1)
}

// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package schema validates DSL documents against a JSON Schema.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// Validator checks an untyped DSL document.
type Validator interface {
	// Validate returns nil or a ValidationErrors listing every violation.
	Validate(doc interface{}) error
}

// DefaultValidator implements Validator with support for a subset of JSON
// Schema keywords: type (string or list), properties, required, enum, items,
// additionalProperties, propertyNames, pattern, minProperties, maxProperties.
type DefaultValidator struct {
	schema map[string]interface{}
}

// NewValidator creates a validator for the given schema.
func NewValidator(schema map[string]interface{}) *DefaultValidator {
	return &DefaultValidator{schema: schema}
}

// Validate validates doc against the validator's schema.
func (v *DefaultValidator) Validate(doc interface{}) error {
	var errs ValidationErrors
	v.validate(v.schema, doc, "$", &errs)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validate is the recursive validation function with path tracking.
func (v *DefaultValidator) validate(schema map[string]interface{}, data interface{}, path string, errs *ValidationErrors) {
	if schema == nil {
		return
	}

	if t, ok := schema["type"]; ok {
		if !v.matchesAnyType(t, data) {
			*errs = append(*errs, NewValidationError(path, "type", fmt.Sprintf("expected %v, got %s", t, typeName(data))))
			return
		}
	}

	if enum, ok := schema["enum"].([]interface{}); ok {
		if !inEnum(enum, data) {
			enumJSON, _ := json.Marshal(enum)
			*errs = append(*errs, NewValidationError(path, "enum", fmt.Sprintf("value %v not in allowed values: %s", data, enumJSON)))
		}
	}

	switch val := data.(type) {
	case map[string]interface{}:
		v.validateObject(schema, val, path, errs)
	case []interface{}:
		v.validateArray(schema, val, path, errs)
	case string:
		v.validateString(schema, val, path, errs)
	}
}

func (v *DefaultValidator) matchesAnyType(t interface{}, data interface{}) bool {
	switch tt := t.(type) {
	case string:
		return matchesType(tt, data)
	case []interface{}:
		for _, item := range tt {
			if s, ok := item.(string); ok && matchesType(s, data) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// matchesType checks if data matches the expected type.
func matchesType(schemaType string, data interface{}) bool {
	switch schemaType {
	case "object":
		_, ok := data.(map[string]interface{})
		return ok
	case "array":
		_, ok := data.([]interface{})
		return ok
	case "string":
		_, ok := data.(string)
		return ok
	case "number":
		switch data.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch n := data.(type) {
		case float64:
			// JSON numbers are float64, check if it's a whole number
			return n == float64(int64(n))
		case int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := data.(bool)
		return ok
	case "null":
		return data == nil
	default:
		return false
	}
}

// validateObject validates object keywords.
func (v *DefaultValidator) validateObject(schema map[string]interface{}, obj map[string]interface{}, path string, errs *ValidationErrors) {
	if required, ok := schema["required"].([]interface{}); ok {
		for _, reqField := range required {
			fieldName, ok := reqField.(string)
			if !ok {
				continue
			}
			if _, exists := obj[fieldName]; !exists {
				*errs = append(*errs, NewValidationError(path, "required", fmt.Sprintf("missing required field: %s", fieldName)))
			}
		}
	}

	if n, ok := toInt(schema["minProperties"]); ok && len(obj) < n {
		*errs = append(*errs, NewValidationError(path, "minProperties", fmt.Sprintf("expected at least %d properties, got %d", n, len(obj))))
	}
	if n, ok := toInt(schema["maxProperties"]); ok && len(obj) > n {
		*errs = append(*errs, NewValidationError(path, "maxProperties", fmt.Sprintf("expected at most %d properties, got %d", n, len(obj))))
	}

	properties, _ := schema["properties"].(map[string]interface{})
	names, _ := schema["propertyNames"].(map[string]interface{})

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, fieldName := range keys {
		fieldValue := obj[fieldName]
		fieldPath := fmt.Sprintf("%s.%s", path, fieldName)

		if names != nil {
			var nameErrs ValidationErrors
			v.validate(names, fieldName, fieldPath, &nameErrs)
			for _, e := range nameErrs {
				e.Keyword = "propertyNames/" + e.Keyword
			}
			*errs = append(*errs, nameErrs...)
		}

		if propSchema, ok := properties[fieldName].(map[string]interface{}); ok {
			v.validate(propSchema, fieldValue, fieldPath, errs)
			continue
		}

		switch extra := schema["additionalProperties"].(type) {
		case bool:
			if !extra {
				*errs = append(*errs, NewValidationError(path, "additionalProperties", fmt.Sprintf("unexpected field: %s", fieldName)))
			}
		case map[string]interface{}:
			v.validate(extra, fieldValue, fieldPath, errs)
		}
	}
}

// validateArray validates array items.
func (v *DefaultValidator) validateArray(schema map[string]interface{}, arr []interface{}, path string, errs *ValidationErrors) {
	if items, ok := schema["items"].(map[string]interface{}); ok {
		for i, item := range arr {
			v.validate(items, item, fmt.Sprintf("%s[%d]", path, i), errs)
		}
	}
}

// validateString validates the pattern constraint.
func (v *DefaultValidator) validateString(schema map[string]interface{}, str string, path string, errs *ValidationErrors) {
	pattern, ok := schema["pattern"].(string)
	if !ok {
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		*errs = append(*errs, NewValidationError(path, "pattern", fmt.Sprintf("invalid pattern %q: %v", pattern, err)))
		return
	}
	if !re.MatchString(str) {
		*errs = append(*errs, NewValidationError(path, "pattern", fmt.Sprintf("value %q does not match %s", str, pattern)))
	}
}

func inEnum(enum []interface{}, data interface{}) bool {
	for _, allowed := range enum {
		if allowed == data {
			return true
		}
	}
	return false
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func typeName(data interface{}) string {
	switch data.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	default:
		return fmt.Sprintf("%T", data)
	}
}

package tools

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// jsonPathSegment is one step of the simplified JSONPath dialect the
// dashboard tools accept: dotted keys with an optional [index] or [*]
// subscript and an optional trailing /- append marker.
type jsonPathSegment struct {
	key        string
	index      int
	isArray    bool
	isAppend   bool
	isWildcard bool
}

var jsonPathSegmentPattern = regexp.MustCompile(`([^.\[\]/]+)(?:\[((?:\d+)|\*)\])?(/-)?`)

func parseJSONPath(path string) ([]jsonPathSegment, error) {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimLeft(path, ".")

	var segments []jsonPathSegment
	for _, match := range jsonPathSegmentPattern.FindAllStringSubmatch(path, -1) {
		segment := jsonPathSegment{key: match[1]}
		if match[2] != "" {
			segment.isArray = true
			if match[2] == "*" {
				segment.isWildcard = true
			} else {
				index, err := strconv.Atoi(match[2])
				if err != nil {
					return nil, fmt.Errorf("Invalid array index in JSONPath: %s", match[2])
				}
				segment.index = index
			}
		}
		segment.isAppend = match[3] != ""
		if segment.isAppend && segment.isWildcard {
			return nil, fmt.Errorf("Cannot combine append syntax with wildcard JSONPath segments")
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

// evaluateJSONPath walks the path read-only. Wildcard segments fan out; a
// single final value is returned bare, multiple values as a list.
func evaluateJSONPath(data map[string]interface{}, path string) (interface{}, error) {
	segments, err := parseJSONPath(path)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("JSONPath cannot be empty")
	}

	current := []interface{}{data}
	for position, segment := range segments {
		if segment.isAppend {
			return nil, fmt.Errorf("Append syntax is not supported when evaluating JSONPath expressions")
		}
		var next []interface{}
		for _, value := range current {
			obj, ok := asObject(value)
			if !ok {
				return nil, fmt.Errorf("Segment '%s' at position %d cannot be applied to non-object value", segment.key, position)
			}
			field, present := obj[segment.key]
			if !present {
				return nil, fmt.Errorf("Field '%s' not found while evaluating JSONPath", segment.key)
			}
			if !segment.isArray {
				next = append(next, field)
				continue
			}
			arr, ok := asArray(field)
			if !ok {
				return nil, fmt.Errorf("Field '%s' is not an array", segment.key)
			}
			if segment.isWildcard {
				next = append(next, arr...)
				continue
			}
			if segment.index < 0 || segment.index >= len(arr) {
				return nil, fmt.Errorf("Index %d out of bounds for array '%s' (length %d)", segment.index, segment.key, len(arr))
			}
			next = append(next, arr[segment.index])
		}
		current = next
	}

	switch len(current) {
	case 0:
		return []interface{}{}, nil
	case 1:
		return current[0], nil
	}
	return current, nil
}

// applyJSONPath mutates data in place, setting, appending, or removing the
// value addressed by the path.
func applyJSONPath(data map[string]interface{}, path string, value interface{}, remove bool) error {
	segments, err := parseJSONPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("JSONPath cannot be empty")
	}

	current := data
	for _, segment := range segments[:len(segments)-1] {
		current, err = navigateJSONPathSegment(current, segment)
		if err != nil {
			return err
		}
	}
	final := segments[len(segments)-1]
	if remove {
		return removeAtJSONPathSegment(current, final)
	}
	return setAtJSONPathSegment(current, final, value)
}

func validateJSONPathArray(current map[string]interface{}, segment jsonPathSegment) ([]interface{}, error) {
	arr, ok := asArray(current[segment.key])
	if !ok {
		return nil, fmt.Errorf("Field '%s' is not an array", segment.key)
	}
	if segment.isWildcard {
		return arr, nil
	}
	if !segment.isAppend && (segment.index < 0 || segment.index >= len(arr)) {
		return nil, fmt.Errorf("Index %d out of bounds for array '%s' (length %d)", segment.index, segment.key, len(arr))
	}
	return arr, nil
}

func navigateJSONPathSegment(current map[string]interface{}, segment jsonPathSegment) (map[string]interface{}, error) {
	if segment.isAppend {
		return nil, fmt.Errorf("Append syntax can only be used at the final JSONPath segment")
	}
	if segment.isArray {
		if segment.isWildcard {
			return nil, fmt.Errorf("Wildcard JSONPath segments are not supported for navigation")
		}
		arr, err := validateJSONPathArray(current, segment)
		if err != nil {
			return nil, err
		}
		obj, ok := asObject(arr[segment.index])
		if !ok {
			return nil, fmt.Errorf("Element at %s[%d] is not an object", segment.key, segment.index)
		}
		return obj, nil
	}
	obj, ok := asObject(current[segment.key])
	if !ok {
		return nil, fmt.Errorf("Field '%s' is not an object", segment.key)
	}
	return obj, nil
}

func setAtJSONPathSegment(current map[string]interface{}, segment jsonPathSegment, value interface{}) error {
	if segment.isAppend {
		arr, err := validateJSONPathArray(current, segment)
		if err != nil {
			return err
		}
		current[segment.key] = append(arr, value)
		return nil
	}
	if segment.isWildcard {
		return fmt.Errorf("Wildcard JSONPath segments are not supported for modification")
	}
	if segment.isArray {
		arr, err := validateJSONPathArray(current, segment)
		if err != nil {
			return err
		}
		arr[segment.index] = value
		return nil
	}
	current[segment.key] = value
	return nil
}

func removeAtJSONPathSegment(current map[string]interface{}, segment jsonPathSegment) error {
	if segment.isAppend {
		return fmt.Errorf("Cannot use append syntax when removing values")
	}
	if segment.isArray {
		return fmt.Errorf("Removing individual array elements is not supported")
	}
	delete(current, segment.key)
	return nil
}

package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// labelMatcher is a Prometheus-style matcher against one label key.
type labelMatcher struct {
	name      string
	value     string
	matchType string
}

// labelSelector groups matchers that must all evaluate to true.
type labelSelector struct {
	filters []labelMatcher
}

func (m labelMatcher) normalizedType() (string, error) {
	switch m.matchType {
	case "", "=":
		return "=", nil
	case "!=", "=~", "!~":
		return m.matchType, nil
	default:
		return "", fmt.Errorf("Unsupported matcher type: %s", m.matchType)
	}
}

func (m labelMatcher) matches(labels map[string]string) (bool, error) {
	matchType, err := m.normalizedType()
	if err != nil {
		return false, err
	}
	labelValue, present := labels[m.name]
	switch matchType {
	case "=":
		return present && labelValue == m.value, nil
	case "!=":
		return !present || labelValue != m.value, nil
	}

	pattern, err := regexp.Compile(m.value)
	if err != nil {
		return false, fmt.Errorf("Invalid regular expression '%s'", m.value)
	}
	if !present {
		return matchType == "!~", nil
	}
	matched := pattern.MatchString(labelValue)
	if matchType == "=~" {
		return matched, nil
	}
	return !matched, nil
}

var promQLValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// promQL renders the selector as a Prometheus series selector, suitable for
// match[] parameters on the label discovery endpoints.
func (s labelSelector) promQL() (string, error) {
	parts := make([]string, 0, len(s.filters))
	for _, matcher := range s.filters {
		matchType, err := matcher.normalizedType()
		if err != nil {
			return "", err
		}
		parts = append(parts, matcher.name+matchType+`"`+promQLValueEscaper.Replace(matcher.value)+`"`)
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

func (s labelSelector) matches(labels map[string]string) (bool, error) {
	for _, matcher := range s.filters {
		ok, err := matcher.matches(labels)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchesAll(selectors []labelSelector, labels map[string]string) (bool, error) {
	for _, selector := range selectors {
		ok, err := selector.matches(labels)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// parseLabelSelectors decodes the labelSelectors argument shape: an array
// of {filters: [{name, value, type}]} objects. Selectors with no filters
// are dropped.
func parseLabelSelectors(raw []interface{}) ([]labelSelector, error) {
	var selectors []labelSelector
	for _, entry := range raw {
		obj, ok := asObject(entry)
		if !ok {
			return nil, fmt.Errorf("Label selector entries must be objects")
		}
		filtersRaw, ok := asArray(obj["filters"])
		if !ok {
			if obj["filters"] == nil {
				continue
			}
			return nil, fmt.Errorf("Label selector 'filters' must be an array")
		}
		var matchers []labelMatcher
		for _, filterRaw := range filtersRaw {
			filter, ok := asObject(filterRaw)
			if !ok {
				return nil, fmt.Errorf("Label matcher entries must be objects")
			}
			name, ok := filter["name"].(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("Label matcher missing required 'name' field")
			}
			value, ok := filter["value"].(string)
			if !ok {
				return nil, fmt.Errorf("Label matcher 'value' must be a string")
			}
			matchType := "="
			if rawType, present := filter["type"]; present && rawType != nil {
				matchType, ok = rawType.(string)
				if !ok {
					return nil, fmt.Errorf("Label matcher 'type' must be a string")
				}
			}
			matchers = append(matchers, labelMatcher{name: name, value: value, matchType: matchType})
		}
		if len(matchers) > 0 {
			selectors = append(selectors, labelSelector{filters: matchers})
		}
	}
	return selectors, nil
}

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelMatcher(t *testing.T) {
	labels := map[string]string{"team": "sre", "severity": "critical"}

	cases := []struct {
		name    string
		matcher labelMatcher
		want    bool
	}{
		{"EqualMatch", labelMatcher{name: "team", value: "sre", matchType: "="}, true},
		{"EqualDefault", labelMatcher{name: "team", value: "sre"}, true},
		{"EqualMismatch", labelMatcher{name: "team", value: "platform", matchType: "="}, false},
		{"EqualAbsentLabel", labelMatcher{name: "region", value: "eu", matchType: "="}, false},
		{"NotEqualMatch", labelMatcher{name: "team", value: "platform", matchType: "!="}, true},
		{"NotEqualAbsentLabel", labelMatcher{name: "region", value: "eu", matchType: "!="}, true},
		{"RegexMatch", labelMatcher{name: "severity", value: "crit.*", matchType: "=~"}, true},
		{"RegexMismatch", labelMatcher{name: "severity", value: "warn.*", matchType: "=~"}, false},
		{"RegexAbsentLabel", labelMatcher{name: "region", value: ".*", matchType: "=~"}, false},
		{"NegatedRegexMatch", labelMatcher{name: "severity", value: "warn.*", matchType: "!~"}, true},
		{"NegatedRegexAbsentLabel", labelMatcher{name: "region", value: ".*", matchType: "!~"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.matcher.matches(labels)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := labelMatcher{name: "team", value: "sre", matchType: "~="}.matches(labels)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unsupported matcher type")
	})

	t.Run("InvalidRegex", func(t *testing.T) {
		_, err := labelMatcher{name: "team", value: "(", matchType: "=~"}.matches(labels)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid regular expression")
	})
}

func TestMatchesAll(t *testing.T) {
	labels := map[string]string{"team": "sre", "severity": "critical"}
	selectors := []labelSelector{
		{filters: []labelMatcher{
			{name: "team", value: "sre"},
			{name: "severity", value: "crit.*", matchType: "=~"},
		}},
	}

	ok, err := matchesAll(selectors, labels)
	require.NoError(t, err)
	assert.True(t, ok)

	selectors = append(selectors, labelSelector{filters: []labelMatcher{
		{name: "team", value: "platform"},
	}})
	ok, err = matchesAll(selectors, labels)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseLabelSelectors(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		selectors, err := parseLabelSelectors([]interface{}{
			map[string]interface{}{
				"filters": []interface{}{
					map[string]interface{}{"name": "team", "value": "sre"},
					map[string]interface{}{"name": "severity", "value": "crit.*", "type": "=~"},
				},
			},
		})
		require.NoError(t, err)
		require.Len(t, selectors, 1)
		assert.Len(t, selectors[0].filters, 2)
		assert.Equal(t, "=~", selectors[0].filters[1].matchType)
	})

	t.Run("EmptySelectorDropped", func(t *testing.T) {
		selectors, err := parseLabelSelectors([]interface{}{
			map[string]interface{}{"filters": []interface{}{}},
		})
		require.NoError(t, err)
		assert.Empty(t, selectors)
	})

	t.Run("MissingName", func(t *testing.T) {
		_, err := parseLabelSelectors([]interface{}{
			map[string]interface{}{
				"filters": []interface{}{
					map[string]interface{}{"value": "sre"},
				},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required 'name'")
	})

	t.Run("NonObjectEntry", func(t *testing.T) {
		_, err := parseLabelSelectors([]interface{}{"team=sre"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be objects")
	})
}

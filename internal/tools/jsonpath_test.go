package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDashboard() map[string]interface{} {
	return map[string]interface{}{
		"title": "Service Overview",
		"panels": []interface{}{
			map[string]interface{}{
				"id":    float64(1),
				"title": "Requests",
				"targets": []interface{}{
					map[string]interface{}{"expr": "rate(http_requests_total[5m])"},
				},
			},
			map[string]interface{}{
				"id":    float64(2),
				"title": "Errors",
			},
		},
		"time": map[string]interface{}{"from": "now-6h", "to": "now"},
	}
}

func TestParseJSONPath(t *testing.T) {
	t.Run("DottedKeys", func(t *testing.T) {
		segments, err := parseJSONPath("time.from")
		require.NoError(t, err)
		require.Len(t, segments, 2)
		assert.Equal(t, "time", segments[0].key)
		assert.Equal(t, "from", segments[1].key)
		assert.False(t, segments[0].isArray)
	})

	t.Run("DollarPrefixStripped", func(t *testing.T) {
		segments, err := parseJSONPath("$.title")
		require.NoError(t, err)
		require.Len(t, segments, 1)
		assert.Equal(t, "title", segments[0].key)
	})

	t.Run("ArrayIndex", func(t *testing.T) {
		segments, err := parseJSONPath("panels[1].title")
		require.NoError(t, err)
		require.Len(t, segments, 2)
		assert.True(t, segments[0].isArray)
		assert.Equal(t, 1, segments[0].index)
	})

	t.Run("Wildcard", func(t *testing.T) {
		segments, err := parseJSONPath("panels[*].title")
		require.NoError(t, err)
		assert.True(t, segments[0].isWildcard)
	})

	t.Run("Append", func(t *testing.T) {
		segments, err := parseJSONPath("panels/-")
		require.NoError(t, err)
		require.Len(t, segments, 1)
		assert.True(t, segments[0].isAppend)
	})

	t.Run("AppendWithWildcardRejected", func(t *testing.T) {
		_, err := parseJSONPath("panels[*]/-")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Cannot combine append syntax")
	})
}

func TestEvaluateJSONPath(t *testing.T) {
	dashboard := sampleDashboard()

	t.Run("ScalarField", func(t *testing.T) {
		value, err := evaluateJSONPath(dashboard, "title")
		require.NoError(t, err)
		assert.Equal(t, "Service Overview", value)
	})

	t.Run("NestedField", func(t *testing.T) {
		value, err := evaluateJSONPath(dashboard, "time.from")
		require.NoError(t, err)
		assert.Equal(t, "now-6h", value)
	})

	t.Run("ArrayIndex", func(t *testing.T) {
		value, err := evaluateJSONPath(dashboard, "panels[0].title")
		require.NoError(t, err)
		assert.Equal(t, "Requests", value)
	})

	t.Run("WildcardFansOut", func(t *testing.T) {
		value, err := evaluateJSONPath(dashboard, "panels[*].title")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"Requests", "Errors"}, value)
	})

	t.Run("MissingField", func(t *testing.T) {
		_, err := evaluateJSONPath(dashboard, "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("IndexOutOfBounds", func(t *testing.T) {
		_, err := evaluateJSONPath(dashboard, "panels[9].title")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of bounds")
	})

	t.Run("AppendRejected", func(t *testing.T) {
		_, err := evaluateJSONPath(dashboard, "panels/-")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Append syntax is not supported")
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := evaluateJSONPath(dashboard, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JSONPath cannot be empty")
	})
}

func TestApplyJSONPath(t *testing.T) {
	t.Run("ReplaceScalar", func(t *testing.T) {
		dashboard := sampleDashboard()
		require.NoError(t, applyJSONPath(dashboard, "title", "Renamed", false))
		assert.Equal(t, "Renamed", dashboard["title"])
	})

	t.Run("ReplaceNested", func(t *testing.T) {
		dashboard := sampleDashboard()
		require.NoError(t, applyJSONPath(dashboard, "panels[0].title", "Latency", false))
		panel := dashboard["panels"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "Latency", panel["title"])
	})

	t.Run("ReplaceArrayElement", func(t *testing.T) {
		dashboard := sampleDashboard()
		replacement := map[string]interface{}{"id": float64(3), "title": "CPU"}
		require.NoError(t, applyJSONPath(dashboard, "panels[1]", replacement, false))
		assert.Equal(t, replacement, dashboard["panels"].([]interface{})[1])
	})

	t.Run("AppendToArray", func(t *testing.T) {
		dashboard := sampleDashboard()
		require.NoError(t, applyJSONPath(dashboard, "panels/-", map[string]interface{}{"title": "New"}, false))
		assert.Len(t, dashboard["panels"].([]interface{}), 3)
	})

	t.Run("RemoveField", func(t *testing.T) {
		dashboard := sampleDashboard()
		require.NoError(t, applyJSONPath(dashboard, "time", nil, true))
		_, present := dashboard["time"]
		assert.False(t, present)
	})

	t.Run("RemoveArrayElementRejected", func(t *testing.T) {
		dashboard := sampleDashboard()
		err := applyJSONPath(dashboard, "panels[0]", nil, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Removing individual array elements is not supported")
	})

	t.Run("AppendMidPathRejected", func(t *testing.T) {
		dashboard := sampleDashboard()
		err := applyJSONPath(dashboard, "panels/-.title", "x", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "final JSONPath segment")
	})

	t.Run("WildcardSetRejected", func(t *testing.T) {
		dashboard := sampleDashboard()
		err := applyJSONPath(dashboard, "panels[*]", "x", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not supported for modification")
	})

	t.Run("IndexOutOfBounds", func(t *testing.T) {
		dashboard := sampleDashboard()
		err := applyJSONPath(dashboard, "panels[5]", "x", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of bounds")
	})
}

package opts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValuesGetters(t *testing.T) {
	v := Values{
		"port":        4200,
		"port-string": "8080",
		"ratio":       float64(3),
		"watch":       true,
		"save-dev":    "true",
		"packages":    []string{"a", "b"},
		"settings":    []interface{}{"x", 1},
		"environment": "production",
	}

	assert.Equal(t, 4200, v.Int("port"))
	assert.Equal(t, 8080, v.Int("port-string"))
	assert.Equal(t, 3, v.Int("ratio"))
	assert.Equal(t, 0, v.Int("missing"))
	assert.True(t, v.Bool("watch"))
	assert.True(t, v.Bool("save-dev"))
	assert.False(t, v.Bool("missing"))
	assert.Equal(t, []string{"a", "b"}, v.Strings("packages"))
	assert.Equal(t, []string{"x", "1"}, v.Strings("settings"))
	assert.Equal(t, []string{"production"}, v.Strings("environment"))
	assert.Equal(t, "production", v.String("environment"))
	assert.Equal(t, "4200", v.String("port"))
	assert.Equal(t, "", v.String("missing"))
	assert.True(t, v.Has("port"))
	assert.False(t, v.Has("missing"))
}

func TestValuesClone(t *testing.T) {
	v := Values{"a": "1"}
	c := v.Clone()
	c["a"] = "2"
	assert.Equal(t, "1", v.String("a"))
}

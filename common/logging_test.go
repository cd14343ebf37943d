package common

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	t.Run("json with attributes", func(t *testing.T) {
		var buf bytes.Buffer
		log := SetupLogger(&LoggingOpts{JSON: true, Service: "objectstore", Version: "v1", UID: "abc", Output: &buf})
		log.Info("hello", "key", "value")

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "objectstore", line["service"])
		assert.Equal(t, "v1", line["version"])
		assert.Equal(t, "abc", line["uid"])
		assert.Equal(t, "value", line["key"])
	})

	t.Run("debug level", func(t *testing.T) {
		var buf bytes.Buffer
		SetupLogger(&LoggingOpts{Output: &buf}).Debug("hidden")
		assert.Empty(t, buf.String())

		SetupLogger(&LoggingOpts{Debug: true, Output: &buf}).Debug("shown")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}

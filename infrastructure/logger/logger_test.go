package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLogger_StampsServiceAndCaller(t *testing.T) {
	entry := GetLogger()

	require.Equal(t, "media-hub", entry.Data["service"])

	function, ok := entry.Data["function"].(string)
	require.True(t, ok)
	require.Contains(t, function, "TestGetLogger_StampsServiceAndCaller")

	file, ok := entry.Data["file"].(string)
	require.True(t, ok)
	require.True(t, strings.HasSuffix(file, "logger_test.go"))
	require.NotZero(t, entry.Data["line"])
}

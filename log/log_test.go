package log

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoglevelNames(t *testing.T) {
	assert.Equal(t, "DEBUG", Ldebug.String())
	assert.Equal(t, "ERROR", Lerror.String())
	assert.Equal(t, "WARN", Lwarn.String())
	assert.Equal(t, "INFO", Linfo.String())
	assert.Equal(t, `SILENT`, Lsilent.String())
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"silent":  Lsilent,
		"ERROR":   Lerror,
		"warning": Lwarn,
		" info ":  Linfo,
		"debug":   Ldebug,
	} {
		level, err := ParseLevel(name)
		require.NoError(t, err, name)
		require.Equal(t, want, level, name)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestLogColorToNotTTY(t *testing.T) {
	var buffer bytes.Buffer
	writer := bufio.NewWriter(&buffer)

	w := NewConsoleWriter(writer, Linfo, true).(*syncWriter)
	formatter := w.writer.(*levelWriter).formatter.(*consoleFormatter)

	assert.False(t, formatter.color, "Color should not be used on a buffer logger")
}

func TestLogComponent(t *testing.T) {
	var buffer bytes.Buffer
	writer := bufio.NewWriter(&buffer)

	logger := New("AudioFileReader").WithOutput(NewConsoleWriter(writer, Linfo, false))

	logger.Info().Log("info")
	writer.Flush()

	assert.Contains(t, buffer.String(), `component="AudioFileReader"`)

	buffer.Reset()

	logger.WithComponent("VideoFileWriter").Info().Log("info")
	writer.Flush()

	assert.Contains(t, buffer.String(), `component="VideoFileWriter"`)
	assert.Contains(t, ListComponents(), "VideoFileWriter")
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level Level
		want  [4]bool // debug, info, warn, error
	}{
		{Lsilent, [4]bool{false, false, false, false}},
		{Lerror, [4]bool{false, false, false, true}},
		{Lwarn, [4]bool{false, false, true, true}},
		{Linfo, [4]bool{false, true, true, true}},
		{Ldebug, [4]bool{true, true, true, true}},
	}

	for _, tc := range tests {
		var buffer bytes.Buffer

		logger := New("test").WithOutput(NewConsoleWriter(&buffer, tc.level, false))

		for i, l := range []Logger{logger.Debug(), logger.Info(), logger.Warn(), logger.Error()} {
			buffer.Reset()
			l.Log("message")
			require.Equal(t, tc.want[i], buffer.Len() != 0, "output level %s, message %d", tc.level, i)
		}
	}
}

func TestLogFields(t *testing.T) {
	var buffer bytes.Buffer

	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Ldebug, false))

	logger.WithField("stream", "abc").WithError(errors.New("broken pipe")).Warn().Log("Reading failed")

	line := buffer.String()
	require.Contains(t, line, `msg="Reading failed"`)
	require.Contains(t, line, `stream="abc"`)
	require.Contains(t, line, `error="broken pipe"`)
}

func TestLogFieldsAreNotShared(t *testing.T) {
	var buffer bytes.Buffer

	base := New("test").WithOutput(NewConsoleWriter(&buffer, Ldebug, false)).WithField("a", 1)

	base.WithField("b", 2).Info().Log("first")
	require.Contains(t, buffer.String(), "b=2")

	buffer.Reset()

	base.Info().Log("second")
	require.NotContains(t, buffer.String(), "b=2")
	require.Contains(t, buffer.String(), "a=1")
}

func TestLogFuncField(t *testing.T) {
	var buffer bytes.Buffer

	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Ldebug, false))

	logger.WithField("callback", func() {}).Info().Log("hello")

	require.NotContains(t, buffer.String(), "callback=")
	require.Contains(t, buffer.String(), `field_error="can not add field \"callback\""`)
}

func TestLogWrite(t *testing.T) {
	buffer := NewBufferWriter(Ldebug, 10)

	logger := New("test").WithOutput(buffer)

	n, err := logger.Write([]byte("  from io.Writer\n"))
	require.NoError(t, err)
	require.Equal(t, 17, n)

	events := buffer.Events()
	require.Len(t, events, 1)
	require.Equal(t, "from io.Writer", events[0].Message)
	require.Equal(t, Ldebug, events[0].Level)
}

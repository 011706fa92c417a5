package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Formatter interface {
	Bytes(e *Event) []byte
	String(e *Event) string
}

type jsonFormatter struct{}

func NewJSONFormatter() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Bytes(e *Event) []byte {
	data := make(map[string]interface{}, len(e.Data)+5)

	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}

	data["ts"] = e.Time
	data["level"] = e.Level.String()
	data["component"] = e.Component

	if len(e.Caller) != 0 {
		data["caller"] = e.Caller
	}

	if len(e.Message) != 0 {
		data["message"] = e.Message
	}

	out, err := json.Marshal(data)
	if err != nil {
		out, _ = json.Marshal(map[string]string{
			"level":     e.Level.String(),
			"component": e.Component,
			"message":   e.Message,
			"error":     err.Error(),
		})
	}

	return append(out, '\n')
}

func (f *jsonFormatter) String(e *Event) string {
	return string(f.Bytes(e))
}

type consoleFormatter struct {
	color bool
}

func NewConsoleFormatter(useColor bool) Formatter {
	return &consoleFormatter{
		color: useColor,
	}
}

func (f *consoleFormatter) Bytes(e *Event) []byte {
	return []byte(f.String(e))
}

var levelColors = map[Level]string{
	Ldebug: "\033[35m",
	Linfo:  "\033[34m",
	Lwarn:  "\033[33m",
	Lerror: "\033[31m\033[5m",
}

func (f *consoleFormatter) String(e *Event) string {
	level := e.Level.String()

	if f.color {
		if c, ok := levelColors[e.Level]; ok {
			level = c + level + "\033[0m"
		}
	}

	var b strings.Builder

	b.WriteString(f.writeKV("ts", e.Time.UTC().Format(time.RFC3339)))
	b.WriteByte(' ')
	b.WriteString(f.writeKV("level", level))
	b.WriteByte(' ')
	b.WriteString(f.writeKV("component", strconv.Quote(e.Component)))

	if len(e.Message) != 0 {
		b.WriteByte(' ')
		b.WriteString(f.writeKV("msg", strconv.Quote(e.Message)))
	}

	keys := make([]string, 0, len(e.Data))
	for key := range e.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		b.WriteByte(' ')
		b.WriteString(f.writeKV(key, formatValue(e.Data[key])))
	}

	b.WriteByte('\n')

	return b.String()
}

func formatValue(value interface{}) string {
	switch val := value.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		return strconv.Quote(val)
	case error:
		return strconv.Quote(val.Error())
	case fmt.Stringer:
		return strconv.Quote(val.String())
	}

	data, err := json.Marshal(value)
	if err != nil {
		return strconv.Quote(err.Error())
	}

	return string(data)
}

func (f *consoleFormatter) writeKV(key string, value string) string {
	if !f.color {
		return key + "=" + value
	}

	if key == "error" {
		value = "\033[31m" + value + "\033[0m"
	}

	return "\033[90m" + key + "=\033[0m" + value
}

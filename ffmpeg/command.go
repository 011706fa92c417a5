package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rePlaceholder = regexp.MustCompile(`\{([0-9]+)\}`)

// Expand turns a command template into the list of arguments for ffmpeg.
//
// The template is split on white space. In each token, {n} is replaced with
// the nth argument. A token that starts with @ is always one argument, even if
// the replacement contains spaces (a path). Any other token is split again
// after the replacement, a replacement with an empty string vanishes. The
// result always starts with -hide_banner.
func Expand(template string, args ...interface{}) ([]string, error) {
	command := []string{"-hide_banner"}

	for _, token := range strings.Fields(template) {
		quoted := strings.HasPrefix(token, "@")
		if quoted {
			token = token[1:]
		}

		value, err := substitute(token, args)
		if err != nil {
			return nil, err
		}

		if quoted {
			command = append(command, value)
			continue
		}

		command = append(command, strings.Fields(value)...)
	}

	return command, nil
}

func substitute(token string, args []interface{}) (string, error) {
	var err error

	value := rePlaceholder.ReplaceAllStringFunc(token, func(match string) string {
		n, _ := strconv.Atoi(match[1 : len(match)-1])
		if n >= len(args) {
			err = fmt.Errorf("placeholder %s without argument, have %d arguments", match, len(args))
			return match
		}

		return fmt.Sprint(args[n])
	})

	return value, err
}

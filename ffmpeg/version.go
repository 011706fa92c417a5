package ffmpeg

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Version is the version information of a ffmpeg binary.
type Version struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Satisfies checks the version against a semver constraint, e.g. "^6.0.0".
// An empty constraint is satisfied by any version.
func (v Version) Satisfies(constraint string) error {
	if len(constraint) == 0 {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint '%s': %w", constraint, err)
	}

	version, err := semver.NewVersion(v.Version)
	if err != nil {
		return fmt.Errorf("can't parse ffmpeg version '%s': %w", v.Version, err)
	}

	if !c.Check(version) {
		return fmt.Errorf("ffmpeg version %s doesn't satisfy %s", version.String(), constraint)
	}

	return nil
}

var (
	reVersion       = regexp.MustCompile(`^ffmpeg version ([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
)

func parseVersion(data []byte) Version {
	f := Version{}

	if matches := reVersion.FindSubmatch(data); matches != nil {
		f.Version = string(matches[1])
		if len(matches[2]) == 0 {
			f.Version = f.Version + ".0"
		}
	}

	if matches := reCompiler.FindSubmatch(data); matches != nil {
		f.Compiler = string(matches[1])
	}

	if matches := reConfiguration.FindSubmatch(data); matches != nil {
		f.Configuration = string(matches[1])
	}

	for _, matches := range reLibrary.FindAllSubmatch(data, -1) {
		l := Library{
			Name:     string(matches[1]),
			Compiled: string(matches[2]),
			Linked:   string(matches[3]),
		}

		f.Libraries = append(f.Libraries, l)
	}

	return f
}

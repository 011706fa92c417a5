package value

import (
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strings"

	"github.com/avyn/avstream/log"

	"github.com/Masterminds/semver/v3"
)

// executable

type Exec string

func NewExec(p *string, val string) *Exec {
	*p = val

	return (*Exec)(p)
}

func (u *Exec) Set(val string) error {
	*u = Exec(val)
	return nil
}

func (u *Exec) String() string {
	return string(*u)
}

func (u *Exec) Validate() error {
	val := string(*u)

	_, err := exec.LookPath(val)
	if err != nil {
		return fmt.Errorf("%s not found or is not executable", val)
	}

	return nil
}

func (u *Exec) IsEmpty() bool {
	return len(string(*u)) == 0
}

// log level

type LogLevel string

func NewLogLevel(p *string, val string) *LogLevel {
	*p = val

	return (*LogLevel)(p)
}

func (l *LogLevel) Set(val string) error {
	*l = LogLevel(strings.ToLower(strings.TrimSpace(val)))
	return nil
}

func (l *LogLevel) String() string {
	return string(*l)
}

func (l *LogLevel) Validate() error {
	_, err := log.ParseLevel(string(*l))
	return err
}

func (l *LogLevel) IsEmpty() bool {
	return len(string(*l)) == 0
}

// semver constraint, empty for any version

type VersionConstraint string

func NewVersionConstraint(p *string, val string) *VersionConstraint {
	*p = val

	return (*VersionConstraint)(p)
}

func (v *VersionConstraint) Set(val string) error {
	*v = VersionConstraint(strings.TrimSpace(val))
	return nil
}

func (v *VersionConstraint) String() string {
	return string(*v)
}

func (v *VersionConstraint) Validate() error {
	if v.IsEmpty() {
		return nil
	}

	if _, err := semver.NewConstraint(string(*v)); err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}

	return nil
}

func (v *VersionConstraint) IsEmpty() bool {
	return len(string(*v)) == 0
}

// optional address

var reNumeric = regexp.MustCompile("^[0-9]+$")

type Address string

func NewAddress(p *string, val string) *Address {
	*p = val

	return (*Address)(p)
}

func (s *Address) Set(val string) error {
	// Only a port number
	if reNumeric.MatchString(val) {
		val = ":" + val
	}

	*s = Address(val)
	return nil
}

func (s *Address) String() string {
	return string(*s)
}

func (s *Address) Validate() error {
	if len(string(*s)) == 0 {
		return nil
	}

	_, port, err := net.SplitHostPort(string(*s))
	if err != nil {
		return err
	}

	if !reNumeric.MatchString(port) {
		return fmt.Errorf("the port must be numerical")
	}

	return nil
}

func (s *Address) IsEmpty() bool {
	return len(string(*s)) == 0
}

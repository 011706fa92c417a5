package value

import (
	"fmt"
	"strconv"
	"strings"
)

// string

type String string

func NewString(p *string, val string) *String {
	*p = val

	return (*String)(p)
}

func (s *String) Set(val string) error {
	*s = String(val)
	return nil
}

func (s *String) String() string {
	return string(*s)
}

func (s *String) Validate() error {
	return nil
}

func (s *String) IsEmpty() bool {
	return len(string(*s)) == 0
}

// array of strings

type StringList struct {
	p         *[]string
	separator string
}

func NewStringList(p *[]string, val []string, separator string) *StringList {
	v := &StringList{
		p:         p,
		separator: separator,
	}

	*p = val

	return v
}

func (s *StringList) Set(val string) error {
	list := []string{}

	for _, elm := range strings.Split(val, s.separator) {
		elm = strings.TrimSpace(elm)
		if len(elm) != 0 {
			list = append(list, elm)
		}
	}

	*s.p = list

	return nil
}

func (s *StringList) String() string {
	if s.IsEmpty() {
		return "(empty)"
	}

	return strings.Join(*s.p, s.separator)
}

func (s *StringList) Validate() error {
	return nil
}

func (s *StringList) IsEmpty() bool {
	return len(*s.p) == 0
}

// int

type Int int

func NewInt(p *int, val int) *Int {
	*p = val

	return (*Int)(p)
}

func (i *Int) Set(val string) error {
	v, err := strconv.Atoi(val)
	if err != nil {
		return err
	}
	*i = Int(v)
	return nil
}

func (i *Int) String() string {
	return strconv.Itoa(int(*i))
}

func (i *Int) Validate() error {
	return nil
}

func (i *Int) IsEmpty() bool {
	return int(*i) == 0
}

// positive int

type PositiveInt int

func NewPositiveInt(p *int, val int) *PositiveInt {
	*p = val

	return (*PositiveInt)(p)
}

func (i *PositiveInt) Set(val string) error {
	v, err := strconv.Atoi(val)
	if err != nil {
		return err
	}
	*i = PositiveInt(v)
	return nil
}

func (i *PositiveInt) String() string {
	return strconv.Itoa(int(*i))
}

func (i *PositiveInt) Validate() error {
	if int(*i) <= 0 {
		return fmt.Errorf("%d is not a positive number", int(*i))
	}

	return nil
}

func (i *PositiveInt) IsEmpty() bool {
	return int(*i) == 0
}

// float64

type Float64 float64

func NewFloat(p *float64, val float64) *Float64 {
	*p = val

	return (*Float64)(p)
}

func (u *Float64) Set(val string) error {
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return err
	}
	*u = Float64(v)
	return nil
}

func (u *Float64) String() string {
	return strconv.FormatFloat(float64(*u), 'f', -1, 64)
}

func (u *Float64) Validate() error {
	if float64(*u) <= 0 {
		return fmt.Errorf("%s is not a positive number", u.String())
	}

	return nil
}

func (u *Float64) IsEmpty() bool {
	return float64(*u) == 0
}

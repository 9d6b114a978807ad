package main

import (
	"strings"

	"github.com/spf13/pflag"
)

// paramFlags accumulates repeated "--param key=value" flags, validating the
// key=value shape as each one is parsed rather than deferring the error to
// startup.
type paramFlags struct {
	raw []string
}

var _ pflag.Value = (*paramFlags)(nil)

func (p *paramFlags) String() string {
	return strings.Join(p.raw, ",")
}

func (p *paramFlags) Set(value string) error {
	if _, _, err := parseParamFlag(value); err != nil {
		return err
	}
	p.raw = append(p.raw, value)
	return nil
}

func (p *paramFlags) Type() string {
	return "key=value"
}

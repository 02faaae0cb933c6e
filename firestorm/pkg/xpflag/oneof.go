package xpflag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// OneOf is a string flag restricted to a fixed set of values.
type OneOf struct {
	allowed []string
	value   string
}

var _ pflag.Value = (*OneOf)(nil)

func NewOneOf(value string, allowed ...string) *OneOf {
	return &OneOf{allowed: allowed, value: value}
}

// Set implements pflag.Value.
func (o *OneOf) Set(value string) error {
	if !slices.Contains(o.allowed, value) {
		return fmt.Errorf("unexpected value %q, expected one of [%v]", value, o.Variants())
	}
	o.value = value
	return nil
}

// String implements pflag.Value.
func (o *OneOf) String() string {
	return o.value
}

// Type implements pflag.Value.
func (o *OneOf) Type() string {
	return "string"
}

func (o *OneOf) Variants() string {
	return strings.Join(o.allowed, ", ")
}

// Complete plugs the allowed values into cobra shell completion:
//
//	cmd.Flags().Var(mode, "mode", "aggregation mode, one of "+mode.Variants())
//	cmd.RegisterFlagCompletionFunc("mode", mode.Complete)
func (o *OneOf) Complete(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return o.allowed, cobra.ShellCompDirectiveKeepOrder | cobra.ShellCompDirectiveNoFileComp
}

////////////////////////////////////////////////////////////////////////////////

// StringList is a comma separated list flag whose items are checked by parse.
type StringList struct {
	values []string
	parse  func(string) error
}

var _ pflag.Value = (*StringList)(nil)

func NewStringList(parse func(string) error) *StringList {
	return &StringList{parse: parse}
}

// Set implements pflag.Value.
func (l *StringList) Set(value string) error {
	var values []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if err := l.parse(item); err != nil {
			return err
		}
		values = append(values, item)
	}
	l.values = values
	return nil
}

// String implements pflag.Value.
func (l *StringList) String() string {
	return strings.Join(l.values, ",")
}

// Type implements pflag.Value.
func (l *StringList) Type() string {
	return "strings"
}

func (l *StringList) Values() []string {
	return l.values
}

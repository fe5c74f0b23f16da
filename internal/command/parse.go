package command

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// expandAliases rewrites single-dash alias tokens into long flags so pflag
// never reads a multi-letter alias as a cluster of shorthands.
func expandAliases(def Definition, args []string) []string {
	type target struct {
		option string
		value  string
	}
	aliases := make(map[string]target)
	for _, o := range def.Options {
		for _, a := range o.Aliases {
			aliases[a.Token] = target{option: o.Name, value: a.Value}
		}
	}

	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") || arg == "-" {
			out = append(out, arg)
			continue
		}
		token, inline, hasInline := strings.Cut(arg[1:], "=")
		t, ok := aliases[token]
		if !ok {
			out = append(out, arg)
			continue
		}
		switch {
		case t.value != "":
			out = append(out, "--"+t.option+"="+t.value)
		case hasInline:
			out = append(out, "--"+t.option+"="+inline)
		default:
			out = append(out, "--"+t.option)
		}
	}
	return out
}

func isHelp(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "--help" || a == "-h" {
			return true
		}
	}
	return false
}

// flagSet registers one typed flag per option.
func flagSet(def Definition) *pflag.FlagSet {
	fs := pflag.NewFlagSet(def.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(true)
	for _, o := range def.Options {
		switch o.Kind {
		case NumberOpt:
			fs.Int(o.Name, 0, o.Description)
		case BooleanOpt:
			fs.Bool(o.Name, false, o.Description)
		case ListOpt:
			fs.StringArray(o.Name, nil, o.Description)
		default:
			fs.String(o.Name, "", o.Description)
		}
	}
	return fs
}

// cliValue reads a flag the user set explicitly.
func cliValue(fs *pflag.FlagSet, o Option) (interface{}, error) {
	switch o.Kind {
	case NumberOpt:
		return fs.GetInt(o.Name)
	case BooleanOpt:
		return fs.GetBool(o.Name)
	case ListOpt:
		return fs.GetStringArray(o.Name)
	default:
		return fs.GetString(o.Name)
	}
}

// coerce converts a settings or default value to the option's Go type.
// JSON numbers arrive as float64 and lists as []interface{}.
func coerce(o Option, v interface{}) (interface{}, error) {
	switch o.Kind {
	case NumberOpt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			return int(n), nil
		case string:
			return strconv.Atoi(n)
		}
	case BooleanOpt:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case ListOpt:
		switch l := v.(type) {
		case []string:
			return l, nil
		case string:
			return []string{l}, nil
		case []interface{}:
			out := make([]string, 0, len(l))
			for _, e := range l {
				out = append(out, fmt.Sprint(e))
			}
			return out, nil
		}
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case float64, int, bool:
			return fmt.Sprint(s), nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %s", v, v, o.Kind)
}

// finish applies per-kind post-processing: enum membership and absolute
// paths. Relative paths are joined to base.
func finish(def Definition, o Option, v interface{}, base string) (interface{}, error) {
	switch o.Kind {
	case PathOpt:
		p, _ := v.(string)
		if p == "" {
			return p, nil
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		return filepath.Clean(p), nil
	case EnumOpt:
		s, _ := v.(string)
		if !slices.Contains(o.Values, s) {
			return nil, kerrors.NewSilentError(kerrors.ErrCodeInvalidOption, fmt.Sprintf(
				"The option `--%s` of the %s command must be one of: %s. Got %q.",
				o.Name, def.Name, strings.Join(o.Values, ", "), s))
		}
	}
	return v, nil
}

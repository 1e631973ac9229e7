// Package flagx lets several components share os.Args without tripping over
// each other's flags: each one filters out the flags it owns before parsing.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// Set lists the flags one component owns. Value flags take an argument
// ("-a :8080" or "-a=:8080"); Bool flags never consume the next argument
// and only accept the "-y" or "-y=false" forms.
type Set struct {
	Value []string
	Bool  []string
}

// Filter returns the subset of args that belongs to s, preserving order.
// A value flag followed by an argument that does not start with "-" keeps
// that argument as its value.
func (s Set) Filter(args []string) []string {
	value := toSet(s.Value)
	boolean := toSet(s.Bool)

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := value[name]; ok {
				filtered = append(filtered, arg)
			} else if _, ok := boolean[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := boolean[arg]; ok {
			filtered = append(filtered, arg)
			continue
		}

		if _, ok := value[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}

func toSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// FilterArgs keeps only the value flags listed in allowedFlags.
func FilterArgs(args []string, allowedFlags []string) []string {
	return Set{Value: allowedFlags}.Filter(args)
}

// JsonConfigFlags returns the config file path passed via -c or -config,
// or "" when neither is present. When both are given the last one wins.
func JsonConfigFlags() string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"-c", "-config"}))

	return path
}

// Package flagx contains small helpers for layering configuration sources:
// filtering os.Args down to the flags one parser owns, locating the JSON
// config file, and reading typed values from the environment.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args made of the allowed flags (and their
// values) listed in allowedFlags.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c relay.json
//  2. Flag and value combined with '=':      -config=relay.json
//
// Parameters:
//
//	args          the command-line arguments (usually os.Args[1:])
//	allowedFlags  allowed flag names (e.g. []string{"-c", "-config"})
//
// Returns:
//
//	A slice with the allowed flags and their values, never nil. A separate
//	value is only taken when the next argument does not start with '-'.
func FilterArgs(args []string, allowedFlags []string) []string {
	// Set of allowed names for O(1) lookup
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	// Empty, not nil, so callers can always pass it to flag.Parse
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Case 1: "-flag=value"
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			// Keep the whole "flag=value" argument
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		// Case 2: "-flag" with the value (if any) in the next argument
		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++ // value consumed
			}
		}
	}

	return filtered
}

// ConfigFileFlag returns the path given via -c or -config, or "" when
// neither is present. Other arguments are ignored so callers can parse
// their own flags independently.
func ConfigFileFlag() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return path
}

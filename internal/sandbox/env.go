// SPDX-License-Identifier: MPL-2.0

package sandbox

import (
	"strings"
)

// LookupEnvFunc reports the value of an environment variable and whether
// it is set. It matches os.LookupEnv and exists so tests can substitute
// a fixed environment.
type LookupEnvFunc func(key string) (string, bool)

// ResolveEnv turns raw environment entries into KEY=VALUE pairs ready to
// hand to a child process. Each entry is either an explicit KEY=VALUE, or
// a bare KEY forwarded from the invoker's environment via lookup.
// Explicit entries come first and win on key collision; a bare KEY that
// is unset in the invoker's environment is a ConfigurationError.
func ResolveEnv(entries []string, lookup LookupEnvFunc) ([]string, error) {
	var explicit, passthrough []string
	seen := make(map[string]struct{})

	for _, entry := range entries {
		if key, _, ok := strings.Cut(entry, "="); ok {
			if key == "" {
				return nil, &ConfigurationError{
					Field:  "env-map",
					Value:  entry,
					Reason: "empty variable name",
				}
			}
			explicit = append(explicit, entry)
			seen[key] = struct{}{}
			continue
		}
		passthrough = append(passthrough, entry)
	}

	resolved := explicit
	for _, key := range passthrough {
		if _, dup := seen[key]; dup {
			continue
		}
		value, ok := lookup(key)
		if !ok {
			return nil, &ConfigurationError{
				Field:  "env-map",
				Value:  key,
				Reason: "variable is not set in the current environment",
			}
		}
		resolved = append(resolved, key+"="+value)
		seen[key] = struct{}{}
	}
	return resolved, nil
}

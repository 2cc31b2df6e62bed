package config

import (
	"fmt"
	"strings"
)

// section groups options under a TOML table; the empty name is the top level.
type section struct {
	name string
	opts []ConfigOption
}

// splitSections groups options by their first dotted key segment, keeping
// the order of GetConfigOptions.
func splitSections(opts []ConfigOption) []section {
	out := []section{{}}
	index := map[string]int{"": 0}
	for _, o := range opts {
		name, key := "", o.Key
		if before, after, ok := strings.Cut(o.Key, "."); ok {
			name, key = before, after
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, section{name: name})
		}
		out[i].opts = append(out[i].opts, ConfigOption{Key: key, Default: o.Default, Comment: o.Comment})
	}
	return out
}

// RenderDefaultTOML renders a TOML config with defaults from GetConfigOptions.
func RenderDefaultTOML() string {
	lines := []string{"# inkwell configuration (TOML)", ""}
	for _, s := range splitSections(GetConfigOptions()) {
		if len(s.opts) == 0 {
			continue
		}
		if s.name != "" {
			lines = append(lines, "["+s.name+"]")
		}
		for _, o := range s.opts {
			lines = appendOption(lines, o)
		}
	}
	return strings.Join(lines, "\n")
}

// UpdateTOML adds missing defaults to an existing TOML document and
// comments out keys that are no longer recognised. Missing keys land in
// their existing table when there is one, so no table is declared twice.
func UpdateTOML(existing string) (string, bool) {
	known := make(map[string]bool)
	for _, o := range GetConfigOptions() {
		known[o.Key] = true
	}

	seen := make(map[string]bool)
	// end[name] is the position after the last line of table name.
	end := map[string]int{}
	firstTable := -1
	current := ""
	changed := false
	out := make([]string, 0)
	for _, line := range strings.Split(existing, "\n") {
		trim := strings.TrimSpace(line)
		switch {
		case trim == "" || strings.HasPrefix(trim, "#"):
			out = append(out, line)
		case strings.HasPrefix(trim, "[") && strings.HasSuffix(trim, "]"):
			current = strings.TrimSpace(trim[1 : len(trim)-1])
			if firstTable < 0 {
				firstTable = len(out)
			}
			out = append(out, line)
		default:
			key, ok := parseTOMLKey(trim)
			full := current + "." + key
			if current == "" {
				full = key
			}
			if ok {
				seen[full] = true
			}
			if ok && !known[full] {
				indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
				out = append(out, indent+"# OUTDATED: option removed from config schema", indent+"# "+trim)
				changed = true
			} else {
				out = append(out, line)
			}
		}
		end[current] = len(out)
	}
	if firstTable >= 0 {
		end[""] = firstTable
	} else {
		end[""] = len(out)
	}

	var missing []ConfigOption
	for _, o := range GetConfigOptions() {
		if !seen[o.Key] {
			missing = append(missing, o)
		}
	}
	if len(missing) == 0 {
		return strings.Join(out, "\n"), changed
	}

	inserts := map[int][]string{}
	var tail []string
	for _, s := range splitSections(missing) {
		if len(s.opts) == 0 {
			continue
		}
		var block []string
		for _, o := range s.opts {
			block = appendOption(block, o)
		}
		if at, ok := end[s.name]; ok {
			inserts[at] = append(inserts[at], block...)
			continue
		}
		tail = append(tail, "["+s.name+"]")
		tail = append(tail, block...)
	}
	merged := make([]string, 0, len(out)+len(tail)+8)
	for i := 0; i <= len(out); i++ {
		if block, ok := inserts[i]; ok {
			merged = append(merged, block...)
		}
		if i < len(out) {
			merged = append(merged, out[i])
		}
	}
	if len(tail) > 0 {
		merged = append(merged, "", "# Added by config update")
		merged = append(merged, tail...)
	}
	return strings.Join(merged, "\n"), true
}

func parseTOMLKey(line string) (string, bool) {
	key, _, ok := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" || strings.ContainsAny(key[:1], `["'`) {
		return "", false
	}
	return key, true
}

func appendOption(lines []string, o ConfigOption) []string {
	if o.Comment != "" {
		lines = append(lines, "# "+o.Comment)
	}
	switch v := o.Default.(type) {
	case string:
		lines = append(lines, fmt.Sprintf("%s = %q", o.Key, v))
	default:
		lines = append(lines, fmt.Sprintf("%s = %v", o.Key, v))
	}
	return append(lines, "")
}

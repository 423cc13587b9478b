package scanner

import (
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions is the image allow-list used when none is configured.
const DefaultExtensions = ".jpg,.jpeg,.png,.gif,.bmp,.webp"

// ExtensionSet is a lower-cased set of file extensions, each with a leading dot.
type ExtensionSet map[string]struct{}

// ParseExtensions turns a comma separated allow-list into an ExtensionSet.
// Entries are trimmed and lower-cased, a missing leading dot is added and blanks are dropped.
func ParseExtensions(raw string) ExtensionSet {
	set := make(ExtensionSet)
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// Matches reports whether the file name's extension is in the set, ignoring case.
func (s ExtensionSet) Matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	_, ok := s[ext]
	return ok
}

// List returns the extensions in sorted order.
func (s ExtensionSet) List() []string {
	out := make([]string, 0, len(s))
	for ext := range s {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (s ExtensionSet) String() string {
	return strings.Join(s.List(), ",")
}

package plugins

import "strings"

// ParseList splits a comma-separated identifier list. Surrounding spaces and
// blank elements are dropped. The result is non-nil even for an empty input,
// so passing it to SetPlugins clears the selection.
func ParseList(s string) []string {
	ids := []string{}
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// FormatList joins identifiers into the persisted comma-separated form.
func FormatList(ids []string) string {
	return strings.Join(ids, ",")
}

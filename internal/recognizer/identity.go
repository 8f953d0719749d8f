package recognizer

import (
	"path"
	"strconv"
	"strings"
)

// ParseEnrollmentFilename extracts the student id from an enrollment image
// filename of the form {student_id}__{sequence}__{token}.ext. Malformed
// names resolve to (0, false); this is the only place the convention is
// interpreted.
func ParseEnrollmentFilename(name string) (int64, bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	prefix, _, found := strings.Cut(base, "__")
	if !found || prefix == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

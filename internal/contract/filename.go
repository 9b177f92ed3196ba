package contract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// RE2 has no backreferences, so the quoted form is spelled out per quote char.
var filenamePattern = regexp.MustCompile(`filename[^;=\n]*=(?:"([^"'\n]*)"|'([^"'\n]*)'|([^;\n]*))`)

// FilenameFromDisposition extracts the filename hint from a
// Content-Disposition value, falling back to contract_<id>.pdf.
func FilenameFromDisposition(header, contractID string) string {
	fallback := fmt.Sprintf("contract_%s.pdf", contractID)
	m := filenamePattern.FindStringSubmatch(header)
	if m == nil {
		return fallback
	}

	name := ""
	for _, g := range m[1:] {
		if g != "" {
			name = strings.TrimSpace(g)
			break
		}
	}
	// RFC 5987 extended value: UTF-8''percent-encoded
	if i := strings.Index(name, "''"); i >= 0 && strings.EqualFold(name[:i], "utf-8") {
		if dec, err := url.PathUnescape(name[i+2:]); err == nil {
			name = dec
		}
	}
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return fallback
	}
	return name
}

package orchestrator

import (
	"regexp"
	"strings"
)

// subdomainPattern constrains routing subdomains to a single lowercase
// DNS label of at most 63 characters.
var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// domainLabelPattern constrains each label of a custom domain.
var domainLabelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidSubdomain reports whether s is an acceptable routing subdomain.
func ValidSubdomain(s string) bool {
	return subdomainPattern.MatchString(s)
}

// ValidDomain reports whether s is an acceptable custom domain: two or
// more dot-separated labels, each a valid DNS label, total length at
// most 253 characters.
func ValidDomain(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !domainLabelPattern.MatchString(label) {
			return false
		}
	}
	return true
}

// ProjectName derives a provider-safe project name from a deployment
// name: lowercased, with every run of characters outside [a-z0-9-]
// collapsed to a single hyphen, trimmed of leading and trailing
// hyphens.
func ProjectName(name string) string {
	name = strings.ToLower(name)

	var b strings.Builder
	lastHyphen := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > 63 {
		out = strings.Trim(out[:63], "-")
	}
	return out
}

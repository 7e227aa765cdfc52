// Package dnsname converts domain names to their "lookup form": a
// label-reversed byte encoding used as the zone tree's sort key. Reversing
// label order means siblings share a common prefix, which is what lets the
// zone tree answer predecessor-or-equal queries for DNSSEC denial-of-
// existence without a full name-aware comparator at every node.
package dnsname

import "strings"

// labelSep is used to separate reversed labels in the lookup-form key. It
// must sort below every legal label byte (0x00 is reserved for root/length
// bytes in wire form, so 0x01 here never collides with label content once
// names are lower-cased ASCII+escape text as miekg/dns.Fqdn produces).
const labelSep = byte(0x01)

// LookupKey returns the lookup-form key for name: labels reversed,
// lower-cased, separated by a byte less than any label byte. "www.example.com."
// becomes the byte sequence for "com\x01example\x01www".
//
// Two names are equal iff their lookup keys are equal. Keys sort so that
// all descendants of a name are adjacent to it in the tree, which is the
// property predecessor-or-equal queries rely on.
func LookupKey(name string) string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if name == "" {
		return ""
	}
	labels := splitLabels(name)
	var b strings.Builder
	b.Grow(len(name) + len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		b.WriteString(labels[i])
		if i != 0 {
			b.WriteByte(labelSep)
		}
	}
	return b.String()
}

// splitLabels splits a presentation-form name on unescaped dots. DNS
// presentation format allows a dot inside a label when escaped as "\.";
// callers that need full escape fidelity should pre-validate with
// miekg/dns before calling LookupKey. This split is deliberately simple:
// the core only needs a stable, order-preserving key, not a
// presentation-format parser.
func splitLabels(name string) []string {
	var labels []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' && (i == 0 || name[i-1] != '\\') {
			labels = append(labels, name[start:i])
			start = i + 1
		}
	}
	labels = append(labels, name[start:])
	return labels
}

// IsSubdomain reports whether child is owner-equal to or a proper
// subdomain of parent, both given in presentation form. Used by IXFR-in to
// filter out-of-zone records (spec §4.5's "neither equal to the zone's
// name nor a proper subdomain of it").
func IsSubdomain(child, parent string) bool {
	c := LookupKey(child)
	p := LookupKey(parent)
	if c == p {
		return true
	}
	return strings.HasPrefix(c, p+string(labelSep))
}

// IsWildcard reports whether the leftmost label of name (presentation
// form) is "*".
func IsWildcard(name string) bool {
	name = strings.TrimSuffix(name, ".")
	return strings.HasPrefix(name, "*.") || name == "*"
}

// ParentOf returns the immediate parent of name (presentation form) by
// stripping its leftmost label. The root zone has no parent; ok is false
// for name == "." and for the empty string.
func ParentOf(name string) (parent string, ok bool) {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' && (i == 0 || name[i-1] != '\\') {
			return name[i+1:] + ".", true
		}
	}
	return ".", true
}

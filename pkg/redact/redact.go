package redact

import (
	"fmt"
	"net/netip"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Kind names a class of sensitive value. It is rendered into the
// replacement marker, e.g. [REDACTED_EMAIL].
type Kind string

const (
	KindUsername    Kind = "USERNAME"
	KindPassword    Kind = "PASSWORD"
	KindPrivateKey  Kind = "PRIVATE_KEY"
	KindCertificate Kind = "CERTIFICATE"
	KindPublicKey   Kind = "PUBLIC_KEY"
	KindSSHKey      Kind = "SSH_KEY"
	KindToken       Kind = "TOKEN"
	KindEmail       Kind = "EMAIL"
	KindIPv4        Kind = "IPV4"
	KindIPv6        Kind = "IPV6"
	KindHostname    Kind = "HOSTNAME"
)

// rank orders kinds when two matches start at the same offset and have the
// same length. Key/value pairs come first so that re-sanitizing a masked
// value produces the same marker.
var rank = map[Kind]int{
	KindUsername:    0,
	KindPassword:    1,
	KindPrivateKey:  2,
	KindCertificate: 3,
	KindPublicKey:   4,
	KindSSHKey:      5,
	KindToken:       6,
	KindEmail:       7,
	KindIPv4:        8,
	KindIPv6:        9,
	KindHostname:    10,
}

// Marker returns the fixed replacement text for a kind.
func Marker(kind Kind) string {
	return fmt.Sprintf("[REDACTED_%s]", kind)
}

type pattern struct {
	kind Kind
	re   *regexp.Regexp
	// mask is the index of the "mask" subexpression, or 0 for the whole match.
	mask int
	// accept filters candidate matches the expression alone cannot reject.
	accept func(line string, start, end int) bool
}

func newPattern(kind Kind, expr string, accept func(string, int, int) bool) *pattern {
	re := regexp.MustCompile(expr)
	p := &pattern{kind: kind, re: re, accept: accept}
	for i, name := range re.SubexpNames() {
		if name == "mask" {
			p.mask = i
		}
	}
	return p
}

// kvValue also accepts a quoted value that is never closed, as left behind
// when a long line is truncated.
const kvValue = `(?P<mask>"[^"]*"?|'[^']*'?|[^\s,;&"'{}()<>\[\]]+)`

func defaultPatterns() []*pattern {
	return []*pattern{
		newPattern(KindUsername, `(?i)\buser(?:name)?["']?\s*[=:]\s*`+kvValue, nil),
		newPattern(KindPassword, `(?i)\b(?:password|passwd|pwd)["']?\s*[=:]\s*`+kvValue, nil),
		newPattern(KindToken, `(?i)\b(?:secret|token|api[_-]?key|access[_-]?key)["']?\s*[=:]\s*`+kvValue, nil),
		newPattern(KindToken, `(?i)\bbearer\s+(?P<mask>[A-Za-z0-9._~+/-]{8,}=*)`, nil),
		newPattern(KindPrivateKey, `-----BEGIN [A-Z0-9 ]*PRIVATE KEY-----(?:.*?-----END [A-Z0-9 ]*PRIVATE KEY-----|.*)`, nil),
		newPattern(KindCertificate, `-----BEGIN [A-Z0-9 ]*CERTIFICATE-----(?:.*?-----END [A-Z0-9 ]*CERTIFICATE-----|.*)`, nil),
		newPattern(KindPublicKey, `-----BEGIN [A-Z0-9 ]*PUBLIC KEY-----(?:.*?-----END [A-Z0-9 ]*PUBLIC KEY-----|.*)`, nil),
		newPattern(KindSSHKey, `\b(?:ssh-(?:rsa|dss|ed25519)|ecdsa-sha2-nistp(?:256|384|521)|sk-ssh-ed25519@openssh\.com)\s+[A-Za-z0-9+/]{20,}={0,3}`, nil),
		newPattern(KindToken, `\beyJ[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]*`, nil),
		newPattern(KindToken, `[A-Za-z0-9+/]{40,}={0,2}`, looksEncoded),
		newPattern(KindEmail, `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`, nil),
		newPattern(KindIPv4, `\b(?:(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\b`, nil),
		newPattern(KindIPv6, `(?i)[0-9a-f]{0,4}(?::[0-9a-f]{0,4}){2,7}`, isIPv6),
		newPattern(KindHostname, `\b(?:[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.){2,}[A-Za-z]{2,63}\b`, nil),
	}
}

// looksEncoded rejects long runs that are more likely to be paths or plain
// identifiers than encoded secrets.
func looksEncoded(line string, start, end int) bool {
	s := line[start:end]
	if strings.HasPrefix(s, "/") {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isIPv6(line string, start, end int) bool {
	if start > 0 && (isWordByte(line[start-1]) || line[start-1] == ':') {
		return false
	}
	if end < len(line) && (isWordByte(line[end]) || line[end] == ':') {
		return false
	}
	addr, err := netip.ParseAddr(line[start:end])
	if err != nil {
		return false
	}
	return addr.Is6() && line[start:end] != "::"
}

type span struct {
	start, end int
	kind       Kind
}

// Sanitizer replaces sensitive substrings with fixed markers. Matching is
// line-local and the result does not depend on the order patterns are
// evaluated in. Sanitizing already sanitized text returns it unchanged.
type Sanitizer struct {
	patterns []*pattern
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{patterns: defaultPatterns()}
}

var defaultSanitizer = NewSanitizer()

// Sanitize redacts s with the default pattern set.
func Sanitize(s string) string {
	return defaultSanitizer.Sanitize(s)
}

func (s *Sanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}
	if !strings.Contains(text, "\n") {
		return s.sanitizeLine(text)
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = s.sanitizeLine(line)
	}
	return strings.Join(lines, "\n")
}

func (s *Sanitizer) sanitizeLine(line string) string {
	var spans []span
	for _, p := range s.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[0], m[1]
			if p.mask > 0 {
				start, end = m[2*p.mask], m[2*p.mask+1]
			}
			if start < 0 || end <= start {
				continue
			}
			if p.accept != nil && !p.accept(line, start, end) {
				continue
			}
			spans = append(spans, span{start: start, end: end, kind: p.kind})
		}
	}
	if len(spans) == 0 {
		return line
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		if li, lj := spans[i].end-spans[i].start, spans[j].end-spans[j].start; li != lj {
			return li > lj
		}
		return rank[spans[i].kind] < rank[spans[j].kind]
	})

	// Overlapping matches collapse into the earliest one so no fragment of a
	// partially covered value survives.
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start < last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	b.Grow(len(line))
	prev := 0
	for _, sp := range merged {
		b.WriteString(line[prev:sp.start])
		b.WriteString(Marker(sp.kind))
		prev = sp.end
	}
	b.WriteString(line[prev:])
	return b.String()
}

package textproc

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Maximum field lengths, counted in Unicode code points rather than bytes.
const (
	MaxTitleLen     = 500
	MaxNarrativeLen = 10000
)

// Sentinel errors the ingest path translates into its rejection taxonomy.
var (
	ErrTooLong   = errors.New("field exceeds maximum length")
	ErrMalicious = errors.New("malicious content detected")
)

// xssPatterns is the fixed detection set. Case-insensitive, tolerant of
// whitespace between '<' and the tag name. The scan also runs over decoded
// variants of the input, so single and double URL- or entity-encoded
// payloads hit the same patterns.
var xssPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"script_tag", regexp.MustCompile(`(?i)<\s*script`)},
	{"javascript_uri", regexp.MustCompile(`(?i)javascript\s*:`)},
	{"vbscript_uri", regexp.MustCompile(`(?i)vbscript\s*:`)},
	{"data_html_uri", regexp.MustCompile(`(?i)data\s*:[^,]*html`)},
	{"event_handler", regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)},
	{"iframe_tag", regexp.MustCompile(`(?i)<\s*iframe`)},
	{"svg_tag", regexp.MustCompile(`(?i)<\s*svg`)},
	{"object_tag", regexp.MustCompile(`(?i)<\s*object`)},
	{"embed_tag", regexp.MustCompile(`(?i)<\s*embed`)},
	{"form_tag", regexp.MustCompile(`(?i)<\s*form`)},
	{"meta_tag", regexp.MustCompile(`(?i)<\s*meta`)},
	{"img_tag", regexp.MustCompile(`(?i)<\s*img`)},
	{"srcdoc_attr", regexp.MustCompile(`(?i)srcdoc\s*=`)},
	{"formaction_attr", regexp.MustCompile(`(?i)formaction\s*=`)},
	{"xlink_href", regexp.MustCompile(`(?i)xlink:href`)},
	{"css_expression", regexp.MustCompile(`(?i)expression\s*\(`)},
}

var (
	commentRE    = regexp.MustCompile(`(?s)<!--.*?-->`)
	cdataRE      = regexp.MustCompile(`(?s)<!\[CDATA\[.*?\]\]>`)
	tagRE        = regexp.MustCompile(`<[^>]*>`)
	hspaceRE     = regexp.MustCompile(`[^\S\n]+`)
	multiBlankRE = regexp.MustCompile(`\n{3,}`)
)

// ValidateTitle runs the full gate/sanitize sequence with the title limit.
func ValidateTitle(raw string) (string, error) {
	return validate(raw, MaxTitleLen, "title")
}

// ValidateNarrative runs the full gate/sanitize sequence with the narrative
// limit. The empty string is valid and sanitizes to itself.
func ValidateNarrative(raw string) (string, error) {
	return validate(raw, MaxNarrativeLen, "narrative")
}

// validate applies the ordered stages: length gate on the raw input, XSS
// detection before any sanitization, then sanitize.
func validate(raw string, maxLen int, field string) (string, error) {
	if raw == "" {
		return "", nil
	}

	if n := utf8.RuneCountInString(raw); n > maxLen {
		return "", fmt.Errorf("%w: %s is %d code points (max %d)", ErrTooLong, field, n, maxLen)
	}

	if name := DetectXSS(raw); name != "" {
		return "", fmt.Errorf("%w: %s matched %s", ErrMalicious, field, name)
	}

	return Sanitize(raw), nil
}

// DetectXSS scans the raw input and its decoded variants against the fixed
// pattern set. Returns the first matching pattern name, or "" when clean.
// Detection runs before sanitization on purpose: sanitizing first would
// destroy the evidence that the caller sent an attack payload.
func DetectXSS(raw string) string {
	searchText := strings.Join(decodeVariants(raw), "\n")
	for _, p := range xssPatterns {
		if p.re.MatchString(searchText) {
			return p.name
		}
	}
	return ""
}

// decodeVariants produces the raw string plus single- and double-decoded
// URL and HTML-entity layers, so %3Cscript%3E and &lt;script&gt; (and their
// doubly-encoded forms) are caught by the plain patterns.
func decodeVariants(raw string) []string {
	variants := []string{raw}

	urlOnce := queryUnescape(raw)
	urlTwice := queryUnescape(urlOnce)
	entOnce := html.UnescapeString(raw)
	entTwice := html.UnescapeString(entOnce)

	variants = append(variants, urlOnce, urlTwice, entOnce, entTwice)
	// Mixed layer: entity-encoded inside URL-encoded and vice versa.
	variants = append(variants, html.UnescapeString(urlOnce), queryUnescape(entOnce))
	return variants
}

// queryUnescape decodes percent-encoding but keeps the input intact when it
// is not valid percent-encoding, so a stray '%' cannot mask a payload.
func queryUnescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// Sanitize normalizes already-screened text. Order matters:
//
//  1. Decode HTML entities.
//  2. Strip comments and CDATA sections.
//  3. Strip tags.
//  4. Drop control characters except tab, newline, carriage return.
//  5. Unicode-normalize to the canonical composed form (NFC).
//  6. Collapse horizontal whitespace runs to single spaces.
//  7. Normalize 3+ consecutive newlines to exactly two.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	s := html.UnescapeString(raw)
	s = commentRE.ReplaceAllString(s, "")
	s = cdataRE.ReplaceAllString(s, "")
	s = tagRE.ReplaceAllString(s, " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = hspaceRE.ReplaceAllString(s, " ")
	s = multiBlankRE.ReplaceAllString(s, "\n\n")

	// Trim the space runs that tag stripping leaves around line boundaries.
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

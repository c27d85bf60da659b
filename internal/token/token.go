// Package token reads fields out of the broker's opaque XML tokens.
package token

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"mvpdauth/internal/models"
)

const (
	AuthnExpiry = "simpleTokenExpires"
	AuthzExpiry = "simpleTokenTTL"

	MsoID              = "simpleTokenMsoID"
	SAMLNameID         = "simpleSamlNameID"
	SAMLSessionIndex   = "simpleSamlSessionIndex"
	AuthenticationGUID = "simpleTokenAuthenticationGuid"
)

var (
	fieldMu sync.Mutex
	fieldRe = map[string]*regexp.Regexp{}
)

func fieldPattern(tag string) *regexp.Regexp {
	fieldMu.Lock()
	defer fieldMu.Unlock()
	re, ok := fieldRe[tag]
	if !ok {
		q := regexp.QuoteMeta(tag)
		re = regexp.MustCompile(`(?s)<` + q + `>(.+?)</` + q + `>`)
		fieldRe[tag] = re
	}
	return re
}

// Field returns the text of the first <tag> element in doc.
func Field(doc, tag string) (string, error) {
	m := fieldPattern(tag).FindStringSubmatch(doc)
	if m == nil {
		return "", &models.ParseError{Element: tag}
	}
	return m[1], nil
}

// UnescapedField is Field with HTML entities decoded, for tokens the broker
// embeds escaped inside its XML responses.
func UnescapedField(doc, tag string) (string, error) {
	v, err := Field(doc, tag)
	if err != nil {
		return "", err
	}
	return html.UnescapeString(v), nil
}

var gmtSuffix = regexp.MustCompile(`[_ ]GMT`)

// offsetLayouts carry the zone the broker appends after "GMT", e.g.
// "2017/02/10 14:26:50 GMT -0800".
var offsetLayouts = []string{
	"2006/01/02 15:04:05 -0700",
	"2006/01/02 15:04:05-0700",
	"2006/01/02_15:04:05 -0700",
	"2006/01/02_15:04:05_-0700",
	"2006/01/02_15:04:05-0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05-0700",
}

var expiryLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02_15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
}

// ExpiresAt parses the expiry stored under tag. ok is false when the field is
// absent or in a format we do not recognise.
func ExpiresAt(tok, tag string) (t time.Time, ok bool) {
	raw, err := Field(tok, tag)
	if err != nil {
		return time.Time{}, false
	}
	raw = strings.TrimSpace(gmtSuffix.ReplaceAllString(raw, ""))

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Expired reports whether tok's expiry is at or before now. Tokens without a
// readable expiry never expire.
func Expired(tok, tag string, now time.Time) bool {
	exp, ok := ExpiresAt(tok, tag)
	if !ok {
		return false
	}
	return exp.Unix() <= now.Unix()
}

// Package form submits HTML forms found in downloaded pages and follows
// meta-refresh redirects, the two primitives every provider login is built from.
package form

import (
	"context"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"

	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

// Fields are form values merged over a page's hidden inputs.
type Fields map[string]string

// Submitter posts forms on behalf of one provider.
type Submitter struct {
	Browser httputil.Browser
	Profile models.ProviderProfile
	// Header is added to every submission (provider-specific headers).
	Header http.Header
	Logger *slog.Logger
}

// Submit posts the first form on page. Hidden and submit inputs provide the
// defaults, overrides win. When enforceSecure is set the submission carries
// credentials: the target host must match the profile's login host, checked
// before anything is sent, and plain http is upgraded to https.
func (s *Submitter) Submit(ctx context.Context, page *httputil.Page, overrides Fields, enforceSecure bool, note string) (*httputil.Page, error) {
	action, err := FormAction(page.Body)
	if err != nil {
		return nil, &models.ParseError{Element: "post url", URL: redacted(page.URL)}
	}
	target, err := resolve(page.URL, action)
	if err != nil {
		return nil, &models.ParseError{Element: "post url", URL: redacted(page.URL)}
	}

	if enforceSecure {
		if want := s.Profile.LoginHostname; want != "" && want != target.Hostname() {
			return nil, &models.HostnameMismatchError{Expected: want, Got: target.Hostname()}
		}
		if target.Scheme != "https" {
			s.logger().Debug("upgrading login URL scheme to https", "host", target.Host)
			target.Scheme = "https"
		}
	}

	data := HiddenInputs(page.Body)
	for k, v := range overrides {
		data.Set(k, v)
	}
	return httputil.PostForm(ctx, s.Browser, target.String(), data, s.Header, note)
}

func (s *Submitter) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if base == nil || u.IsAbs() {
		return u, nil
	}
	return base.ResolveReference(u), nil
}

func redacted(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Redacted()
}

// HiddenInputs collects name/value pairs of hidden and submit inputs.
// Inputs without a name fall back to their id.
func HiddenInputs(body string) url.Values {
	out := url.Values{}
	eachTag(body, "input", func(attrs map[string]string) bool {
		switch strings.ToLower(attrs["type"]) {
		case "hidden", "submit":
		default:
			return true
		}
		name := attrs["name"]
		if name == "" {
			name = attrs["id"]
		}
		value, ok := attrs["value"]
		if name != "" && ok {
			out.Set(name, value)
		}
		return true
	})
	return out
}

// FormAction returns the action attribute of the first form that has one.
func FormAction(body string) (string, error) {
	var action string
	eachTag(body, "form", func(attrs map[string]string) bool {
		if a := attrs["action"]; a != "" {
			action = a
			return false
		}
		return true
	})
	if action == "" {
		return "", &models.ParseError{Element: "form action"}
	}
	return action, nil
}

var refreshContent = regexp.MustCompile(`(?i)^\s*[0-9]{0,2};\s*url='?([^'"]+)`)

// ExtractMetaRedirect returns the target of a meta-refresh tag, resolved
// against base when base is non-nil. A missing tag is an error only when required.
func ExtractMetaRedirect(body string, base *url.URL, required bool) (string, error) {
	var target string
	eachTag(body, "meta", func(attrs map[string]string) bool {
		if !strings.EqualFold(attrs["http-equiv"], "refresh") {
			return true
		}
		if m := refreshContent.FindStringSubmatch(attrs["content"]); m != nil {
			target = strings.TrimSpace(m[1])
			return false
		}
		return true
	})
	if target == "" {
		if required {
			return "", &models.ParseError{Element: "meta refresh redirect", URL: redacted(base)}
		}
		return "", nil
	}
	if base == nil {
		return target, nil
	}
	u, err := resolve(base, target)
	if err != nil {
		return "", &models.ParseError{Element: "meta refresh redirect", URL: redacted(base)}
	}
	return u.String(), nil
}

// Search returns the first non-empty capture group of re in body.
func Search(re *regexp.Regexp, body, name string) (string, error) {
	m := re.FindStringSubmatch(body)
	for _, g := range m[min(1, len(m)):] {
		if g != "" {
			return g, nil
		}
	}
	return "", &models.ParseError{Element: name}
}

// SearchHTML is Search with HTML entities unescaped and whitespace trimmed.
func SearchHTML(re *regexp.Regexp, body, name string) (string, error) {
	v, err := Search(re, body, name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(html.UnescapeString(v)), nil
}

// eachTag calls fn with the lowercased attributes of every start tag named
// tag until fn returns false. Comments are skipped by the tokenizer.
func eachTag(body, tag string, fn func(attrs map[string]string) bool) {
	z := xhtml.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if z.Err() != io.EOF {
				slog.Debug("html tokenizer stopped early", "error", z.Err())
			}
			return
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != tag {
				continue
			}
			attrs := map[string]string{}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				key := strings.ToLower(string(k))
				if _, seen := attrs[key]; !seen {
					attrs[key] = string(v)
				}
			}
			if !fn(attrs) {
				return
			}
		}
	}
}

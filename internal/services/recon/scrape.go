package recon

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"prospector/internal/domain"
	"prospector/internal/ports"
)

// scrapeMethod fetches likely contact pages and mines them for mailto links,
// visible addresses, and a name sitting near a title keyword.
type scrapeMethod struct {
	fetcher ports.Fetcher
}

var contactPaths = []string{"", "/contact", "/contact-us", "/about", "/about-us", "/team"}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

var titleKeywords = []string{"owner", "founder", "ceo", "president", "principal", "proprietor", "director"}

func (m *scrapeMethod) Name() string { return "scrape" }

func (m *scrapeMethod) Attempt(ctx context.Context, p *domain.Prospect) (*Candidate, error) {
	if m.fetcher == nil || p.WebsiteURL == nil {
		return nil, nil
	}
	base := strings.TrimSuffix(*p.WebsiteURL, "/")
	reg := registrableDomain(p)

	var cand *Candidate
	for _, path := range contactPaths {
		if ctx.Err() != nil {
			return cand, ctx.Err()
		}
		body, err := m.fetcher.Fetch(ctx, base+path)
		if err != nil {
			continue
		}
		page := parsePage(body, reg)
		if page.name != "" && (cand == nil || cand.OwnerName == "") {
			if cand == nil {
				cand = &Candidate{Source: "scrape"}
			}
			cand.OwnerName = page.name
		}
		if page.email != "" {
			if cand == nil {
				cand = &Candidate{Source: "scrape"}
			}
			if cand.Email == "" {
				cand.Email = page.email
			}
			return cand, nil
		}
	}
	return cand, nil
}

type pageHit struct {
	email string
	name  string
}

// parsePage tokenizes the document looking for mailto hrefs, plain-text
// addresses on the page's own domain, and a capitalized name in the text
// window around a title keyword.
func parsePage(body, registrable string) pageHit {
	var hit pageHit
	var textParts []string

	tok := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tok.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := tok.TagAttr()
				if string(key) == "href" {
					href := string(val)
					if strings.HasPrefix(strings.ToLower(href), "mailto:") {
						addr := strings.TrimPrefix(href, "mailto:")
						if i := strings.IndexByte(addr, '?'); i >= 0 {
							addr = addr[:i]
						}
						if hit.email == "" && addr != "" {
							hit.email = strings.ToLower(strings.TrimSpace(addr))
						}
					}
				}
				if !more {
					break
				}
			}
		case html.TextToken:
			if t := strings.TrimSpace(string(tok.Text())); t != "" {
				textParts = append(textParts, t)
			}
		}
	}

	text := strings.Join(textParts, " ")
	if hit.email == "" {
		// Prefer addresses on the prospect's own domain over embedded
		// third-party ones (support widgets, platform footers).
		for _, addr := range emailPattern.FindAllString(text, 10) {
			addr = strings.ToLower(addr)
			if registrable == "" || strings.HasSuffix(addr, "@"+registrable) {
				hit.email = addr
				break
			}
		}
	}
	hit.name = nameNearTitle(text)
	return hit
}

// nameNearTitle scans for a title keyword and pulls the closest run of two
// capitalized words before or after it.
func nameNearTitle(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		lw := strings.ToLower(strings.Trim(w, ".,:;()"))
		for _, kw := range titleKeywords {
			if lw != kw {
				continue
			}
			if n := capitalizedPair(words, i+1); n != "" {
				return n
			}
			if i >= 2 {
				if n := capitalizedPair(words, i-2); n != "" {
					return n
				}
			}
		}
	}
	return ""
}

func capitalizedPair(words []string, at int) string {
	if at < 0 || at+1 >= len(words) {
		return ""
	}
	a := strings.Trim(words[at], ".,:;()")
	b := strings.Trim(words[at+1], ".,:;()")
	if isCapWord(a) && isCapWord(b) {
		return a + " " + b
	}
	return ""
}

func isCapWord(w string) bool {
	if len(w) < 2 || len(w) > 20 {
		return false
	}
	if w[0] < 'A' || w[0] > 'Z' {
		return false
	}
	for _, r := range w[1:] {
		if (r < 'a' || r > 'z') && r != '\'' && r != '-' {
			return false
		}
	}
	return true
}

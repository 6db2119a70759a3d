package cadence

import "strings"

// Addresses and businesses that must never receive outreach: registrar and
// platform domains surfacing in WHOIS or scraped footers, unattended role
// prefixes, and chain businesses with no local decision maker.

var blockedDomains = map[string]bool{
	"godaddy.com":       true,
	"domainsbyproxy.com": true,
	"namecheap.com":     true,
	"cloudflare.com":    true,
	"wix.com":           true,
	"wixpress.com":      true,
	"squarespace.com":   true,
	"wordpress.com":     true,
	"weebly.com":        true,
	"shopify.com":       true,
	"facebook.com":      true,
	"instagram.com":     true,
	"yelp.com":          true,
	"google.com":        true,
	"gmail.com.invalid": true,
	"example.com":       true,
	"sentry.io":         true,
	"sentry.wixpress.com": true,
}

var blockedPrefixes = map[string]bool{
	"noreply":       true,
	"no-reply":      true,
	"donotreply":    true,
	"do-not-reply":  true,
	"postmaster":    true,
	"mailer-daemon": true,
	"abuse":         true,
	"webmaster":     true,
	"privacy":       true,
	"dmca":          true,
}

var chainFragments = []string{
	"mcdonald", "subway", "starbucks", "domino", "pizza hut", "kfc",
	"burger king", "wendy's", "taco bell", "dunkin", "walmart", "target",
	"home depot", "lowe's", "walgreens", "cvs pharmacy", "7-eleven",
	"supercuts", "great clips", "jiffy lube", "midas", "servpro",
	"roto-rooter", "mr. handyman", "molly maid", "anytime fitness",
	"planet fitness", "massage envy", "h&r block", "re/max", "century 21",
	"keller williams",
}

// BlockReason explains why outreach was refused; empty means allowed.
func BlockReason(businessName, email string) string {
	lname := strings.ToLower(businessName)
	for _, frag := range chainFragments {
		if strings.Contains(lname, frag) {
			return "chain business: " + frag
		}
	}
	addr := strings.ToLower(email)
	if at := strings.IndexByte(addr, '@'); at > 0 {
		if blockedPrefixes[addr[:at]] {
			return "blocked prefix: " + addr[:at]
		}
		if blockedDomains[addr[at+1:]] {
			return "blocked domain: " + addr[at+1:]
		}
	}
	return ""
}

package recon

import "strings"

// chainDomains are national-chain and franchise domains where contact
// discovery would land on a corporate office instead of a local decision
// maker. The paid enrichment method skips these outright.
var chainDomains = map[string]bool{
	"mcdonalds.com":     true,
	"subway.com":        true,
	"starbucks.com":     true,
	"dominos.com":       true,
	"pizzahut.com":      true,
	"kfc.com":           true,
	"burgerking.com":    true,
	"wendys.com":        true,
	"tacobell.com":      true,
	"dunkindonuts.com":  true,
	"walmart.com":       true,
	"target.com":        true,
	"homedepot.com":     true,
	"lowes.com":         true,
	"walgreens.com":     true,
	"cvs.com":           true,
	"7-eleven.com":      true,
	"supercuts.com":     true,
	"greatclips.com":    true,
	"jiffylube.com":     true,
	"midas.com":         true,
	"servpro.com":       true,
	"rotorooter.com":    true,
	"mrhandyman.com":    true,
	"molly-maid.com":    true,
	"anytimefitness.com": true,
	"planetfitness.com":  true,
	"massageenvy.com":    true,
	"h-rblock.com":       true,
	"hrblock.com":        true,
	"remax.com":          true,
	"kw.com":             true,
	"century21.com":      true,
}

// IsChainDomain reports whether the registrable domain belongs to a known
// national chain or franchise network.
func IsChainDomain(domain string) bool {
	return chainDomains[strings.ToLower(domain)]
}

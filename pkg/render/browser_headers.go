package render

import (
	"math/rand"
)

// acceptLanguages contains browser Accept-Language values of readers of japanese sites
var acceptLanguages = []string{
	"ja,en-US;q=0.9,en;q=0.8",
	"ja-JP,ja;q=0.9",
	"ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7",
	"ja,en;q=0.9",
	"en-US,en;q=0.9,ja;q=0.8",
}

// browserHeaders returns common browser headers with some randomization
func browserHeaders(userAgent string) map[string]string {
	h := map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
	}

	h["Accept-Language"] = acceptLanguages[rand.Intn(len(acceptLanguages))] //nolint:gosec // non-cryptographic randomness is fine for header variation

	// dnt - 30% chance of being set
	if rand.Float32() < 0.3 { //nolint:gosec // non-cryptographic randomness is fine
		h["DNT"] = "1"
	}
	return h
}

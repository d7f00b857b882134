// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package attribution classifies how returning users came back.
package attribution

import (
	"strings"

	"github.com/tomtom215/lunametrics/internal/models"
)

// Bucket is one of internal, organic or direct.
type Bucket string

const (
	Internal Bucket = "internal"
	Organic  Bucket = "organic"
	Direct   Bucket = "direct"
)

// searchPatterns mark a referrer or utm_source as organic search.
var searchPatterns = []string{"google", "bing", "yahoo", "duckduckgo", "search", "organic"}

// Touch is the attribution metadata of an identity's most recent event.
type Touch struct {
	OriginType string
	Referrer   string
	UTMSource  string
}

// Classifier assigns a touch to exactly one bucket.
type Classifier struct {
	productDomains []string
}

// NewClassifier returns a classifier treating referrers that contain any of
// domains as internal. Domains are matched case-insensitively.
func NewClassifier(domains []string) *Classifier {
	c := &Classifier{productDomains: make([]string, 0, len(domains))}
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			c.productDomains = append(c.productDomains, d)
		}
	}
	return c
}

// Classify checks internal first, then organic; anything else is direct,
// including a touch with no metadata at all.
func (c *Classifier) Classify(t Touch) Bucket {
	origin := strings.ToLower(t.OriginType)
	referrer := strings.ToLower(t.Referrer)
	utm := strings.ToLower(t.UTMSource)

	if origin == "internal" {
		return Internal
	}
	for _, d := range c.productDomains {
		if referrer != "" && strings.Contains(referrer, d) {
			return Internal
		}
	}

	if origin == "seo" {
		return Organic
	}
	for _, p := range searchPatterns {
		if strings.Contains(utm, p) || strings.Contains(referrer, p) {
			return Organic
		}
	}
	return Direct
}

// Tally classifies every touch into a breakdown whose buckets sum to Total.
func (c *Classifier) Tally(touches []Touch) models.ReferrerBreakdown {
	var b models.ReferrerBreakdown
	for _, t := range touches {
		switch c.Classify(t) {
		case Internal:
			b.Internal++
		case Organic:
			b.Organic++
		default:
			b.Direct++
		}
		b.Total++
	}
	return b
}

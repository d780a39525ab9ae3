// Package cashback implements the cashback computation policy.
package cashback

import "math"

// Policy computes the user's cashback from a reported commission. The share
// defaults to a configured flat fraction; retailer- and offer-level overrides
// take precedence, offer over retailer.
type Policy struct {
	defaultShare float64
}

// NewPolicy initializes a policy with the configured flat share.
func NewPolicy(defaultShare float64) *Policy {
	return &Policy{defaultShare: defaultShare}
}

// Share resolves the applicable cashback share. Overrides are passed as
// pointers, nil meaning "no override at this level".
func (p *Policy) Share(retailerShare, offerShare *float64) float64 {
	if offerShare != nil {
		return *offerShare
	}
	if retailerShare != nil {
		return *retailerShare
	}
	return p.defaultShare
}

// Compute returns the cashback amount for a commission, fixed at transaction
// creation and never recomputed afterwards. The result is rounded to cents.
func (p *Policy) Compute(commission float64, retailerShare, offerShare *float64) float64 {
	return math.Round(commission*p.Share(retailerShare, offerShare)*100) / 100
}

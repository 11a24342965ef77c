package billing

import (
	"github.com/fgb-andu/reelprompt-api/pkg/domain"
)

const (
	PlanProMonthly = "pro_monthly"
	PlanProYearly  = "pro_yearly"
	PlanLifetime   = "lifetime"
)

type Mode string

const (
	ModeSubscription Mode = "subscription"
	ModePayment      Mode = "payment"
)

// Plan is a purchasable offer. Grants is the status a completed checkout
// for this plan gives the buyer.
type Plan struct {
	ID      string
	PriceID string
	Mode    Mode
	Grants  domain.SubscriptionStatus
}

// Catalog holds the plans that have a price configured.
type Catalog map[string]Plan

func NewCatalog(proMonthlyPrice, proYearlyPrice, lifetimePrice string) Catalog {
	c := Catalog{}
	add := func(p Plan) {
		if p.PriceID != "" {
			c[p.ID] = p
		}
	}
	add(Plan{ID: PlanProMonthly, PriceID: proMonthlyPrice, Mode: ModeSubscription, Grants: domain.SubscriptionPro})
	add(Plan{ID: PlanProYearly, PriceID: proYearlyPrice, Mode: ModeSubscription, Grants: domain.SubscriptionPro})
	add(Plan{ID: PlanLifetime, PriceID: lifetimePrice, Mode: ModePayment, Grants: domain.SubscriptionLifetime})
	return c
}

func (c Catalog) Lookup(planID string) (Plan, error) {
	p, ok := c[planID]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

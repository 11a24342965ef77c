package domain

import "strings"

// EntitlementPolicy grants subscription status and admin access by email.
// It is the only place where email-based entitlements are decided.
type EntitlementPolicy struct {
	grant    SubscriptionStatus
	accounts map[string]struct{}
	admins   map[string]struct{}
}

func NewEntitlementPolicy(testAccounts []string, grant SubscriptionStatus, admins []string) *EntitlementPolicy {
	if !grant.Valid() || grant == SubscriptionFree {
		grant = SubscriptionPro
	}
	return &EntitlementPolicy{
		grant:    grant,
		accounts: emailSet(testAccounts),
		admins:   emailSet(admins),
	}
}

// Apply upgrades u when its email is on the test-account list. It never
// downgrades. The return value reports whether u was changed.
func (p *EntitlementPolicy) Apply(u *User) bool {
	if p == nil || u == nil {
		return false
	}
	if _, ok := p.accounts[normalizeEmail(u.Email)]; !ok {
		return false
	}
	if u.SubscriptionStatus.rank() >= p.grant.rank() {
		return false
	}
	u.SubscriptionStatus = p.grant
	return true
}

func (p *EntitlementPolicy) IsAdmin(email string) bool {
	if p == nil {
		return false
	}
	_, ok := p.admins[normalizeEmail(email)]
	return ok
}

func emailSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return normalizeEmail(email)
}

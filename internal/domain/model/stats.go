package model

// Stats is the admin overview.
type Stats struct {
	TotalUsers          int `json:"total_users"`
	NewUsers            int `json:"new_users"`
	ActiveSubscriptions int `json:"active_subscriptions"`
	WithFirstPayment    int `json:"with_first_payment"`
	WithoutFirstPayment int `json:"without_first_payment"`
	TotalReferrals      int `json:"total_referrals"`
}

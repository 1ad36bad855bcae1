package model

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// Founder owns a campaign and receives its donations.
type Founder struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	WalletAddress   string `json:"wallet_address,omitempty"`
	StripeConnected bool   `json:"stripe_connected"`
}

// Campaign is a community fundraising campaign.
type Campaign struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumb_nail_url,omitempty"`
	Goal         string    `json:"goal"`
	Location     string    `json:"location"`
	Status       string    `json:"status"`
	IsGetDonated bool      `json:"is_get_donated"`
	CreatedAt    time.Time `json:"created_at"`
	Founder      *Founder  `json:"founder,omitempty"`
}

// AcceptsDonations reports whether the campaign can be donated to.
func (c *Campaign) AcceptsDonations() bool {
	return c.IsGetDonated && (c.Founder == nil || c.Founder.StripeConnected)
}

// CampaignInput is the proposal form for a new campaign.
type CampaignInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Goal         string `json:"goal"`
	Location     string `json:"location"`
	ThumbnailURL string `json:"thumb_nail_url,omitempty"`
	Email        string `json:"email"`
	IsGetDonated bool   `json:"is_get_donated"`
}

// Validate checks the proposal form.
func (in CampaignInput) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		v.Add("title", "can't be blank")
	}
	if strings.TrimSpace(in.Description) == "" {
		v.Add("description", "can't be blank")
	}
	if strings.TrimSpace(in.Goal) == "" {
		v.Add("goal", "can't be blank")
	}
	if !ValidEmail(in.Email) {
		v.Add("email", "is invalid")
	}
	return v.OrNil()
}

// CampaignCreated is the backend's answer to a campaign proposal.
type CampaignCreated struct {
	Success  bool      `json:"success"`
	Campaign *Campaign `json:"campaign,omitempty"`
}

// Donation is a completed donation as listed publicly.
type Donation struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Frequency string    `json:"frequency,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DonationSummary aggregates a campaign's donor list.
type DonationSummary struct {
	Total     int64      `json:"total"`
	Currency  string     `json:"currency"`
	TopDonors []Donation `json:"top_donors"`
	// ByDate sums amounts per calendar day (YYYY-MM-DD), oldest first.
	ByDate []DailyTotal `json:"by_date"`
}

// DailyTotal is the donated amount for one day.
type DailyTotal struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// Summarize totals donations and picks the top donors by amount.
func Summarize(donations []Donation, top int) DonationSummary {
	var s DonationSummary
	if len(donations) > 0 {
		s.Currency = strings.ToUpper(donations[0].Currency)
	}

	byDate := make(map[string]int64)
	for _, d := range donations {
		s.Total += d.Amount
		byDate[d.CreatedAt.Format(time.DateOnly)] += d.Amount
	}

	sorted := slices.Clone(donations)
	slices.SortStableFunc(sorted, func(a, b Donation) int {
		return cmp.Compare(b.Amount, a.Amount)
	})
	if len(sorted) > top {
		sorted = sorted[:top]
	}
	s.TopDonors = sorted

	for date, amount := range byDate {
		s.ByDate = append(s.ByDate, DailyTotal{Date: date, Amount: amount})
	}
	slices.SortFunc(s.ByDate, func(a, b DailyTotal) int {
		return strings.Compare(a.Date, b.Date)
	})
	return s
}

// Supported donation currencies and frequencies.
// MaxDonationAmount bounds the major-unit amount so its minor units fit an
// int64.
const MaxDonationAmount = 1e15

var (
	Currencies  = []string{"USD", "EUR", "GBP"}
	Frequencies = []string{"once", "monthly", "annually"}
)

// DonationInput is the donation form. Amount is in major units; it is sent
// to the backend in minor units.
type DonationInput struct {
	Amount              float64
	Currency            string
	Frequency           string
	FullName            string
	IncludeName         bool
	SubscribeNewsletter bool
	SuccessURL          string
	CancelURL           string
}

// Validate checks the donation form.
func (in DonationInput) Validate() error {
	v := &ValidationError{}
	switch {
	case math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0):
		v.Add("amount", "is not a number")
	case in.Amount <= 0:
		v.Add("amount", "must be greater than 0")
	case in.Amount > MaxDonationAmount:
		v.Add("amount", "is too large")
	}
	if strings.TrimSpace(in.FullName) == "" {
		v.Add("full_name", "can't be blank")
	}
	if !slices.Contains(Currencies, in.Currency) {
		v.Add("currency", "is not supported")
	}
	if !slices.Contains(Frequencies, in.Frequency) {
		v.Add("frequency", "is not supported")
	}
	return v.OrNil()
}

// MinorUnits converts the major-unit amount to cents. It is only meaningful
// for an amount that passed Validate.
func (in DonationInput) MinorUnits() int64 {
	return int64(math.Round(in.Amount * 100))
}

// Checkout is where the payment processor expects the donor to go next.
type Checkout struct {
	URL       string `json:"url,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// PaymentDetails describes a completed checkout session.
type PaymentDetails struct {
	FullName            string `json:"full_name"`
	Amount              int64  `json:"amount"`
	Currency            string `json:"currency"`
	Frequency           string `json:"frequency"`
	Email               string `json:"email,omitempty"`
	SubscribeNewsletter bool   `json:"subscribe_newsletter"`
	IncludeName         bool   `json:"include_name"`
}

// ContactMessage is sent to a campaign founder or to the site admins.
type ContactMessage struct {
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	Message   string `json:"message"`
}

// Validate checks the contact form.
func (m ContactMessage) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(m.FromName) == "" {
		v.Add("from_name", "can't be blank")
	}
	if !ValidEmail(m.FromEmail) {
		v.Add("from_email", "is invalid")
	}
	if strings.TrimSpace(m.Message) == "" {
		v.Add("message", "can't be blank")
	}
	return v.OrNil()
}

// StripeAccount is a connected payment account for a founder.
type StripeAccount struct {
	AccountID string `json:"account_id"`
}

// OnboardingLink is the hosted onboarding URL for a connected account.
type OnboardingLink struct {
	URL string `json:"url"`
}

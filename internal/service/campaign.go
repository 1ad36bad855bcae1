package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/model"
)

// ContactTarget selects who receives a campaign contact message.
type ContactTarget string

// Contact targets.
const (
	ContactFounder ContactTarget = "founder"
	ContactAdmin   ContactTarget = "admin"
)

// CampaignService manages campaigns and their donations.
type CampaignService struct {
	api API
}

// NewCampaignService creates a CampaignService.
func NewCampaignService(api API) *CampaignService {
	return &CampaignService{api: api}
}

// List returns all campaigns.
func (s *CampaignService) List(ctx context.Context) ([]model.Campaign, error) {
	var out []model.Campaign
	if err := s.api.Get(ctx, "/campaigns", &out); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return out, nil
}

// Get returns one campaign.
func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var out model.Campaign
	if err := s.api.Get(ctx, idPath("/campaigns/%d", id), &out); err != nil {
		return nil, fmt.Errorf("get campaign %d: %w", id, err)
	}
	return &out, nil
}

// Create proposes a campaign. A rejection asking for a payment account is
// reported as ErrStripeRequired alongside the server error.
func (s *CampaignService) Create(ctx context.Context, in model.CampaignInput) (*model.CampaignCreated, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out model.CampaignCreated
	if err := s.api.Post(ctx, "/campaigns", in, &out); err != nil {
		if in.IsGetDonated && mentionsStripe(apiclient.Messages(err)) {
			return nil, errors.Join(ErrStripeRequired, fmt.Errorf("create campaign: %w", err))
		}
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return &out, nil
}

func mentionsStripe(messages []string) bool {
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m), "stripe") {
			return true
		}
	}
	return false
}

// Donations returns the recent donations shown on a campaign page.
func (s *CampaignService) Donations(ctx context.Context, id int64) ([]model.Donation, error) {
	var out []model.Donation
	if err := s.api.Get(ctx, idPath("/campaigns/%d/donation", id), &out); err != nil {
		return nil, fmt.Errorf("campaign donations: %w", err)
	}
	return out, nil
}

// AllDonations returns every donation to a campaign.
func (s *CampaignService) AllDonations(ctx context.Context, id int64) ([]model.Donation, error) {
	var out []model.Donation
	if err := s.api.Get(ctx, idPath("/campaigns/%d/all_donations", id), &out); err != nil {
		return nil, fmt.Errorf("all campaign donations: %w", err)
	}
	return out, nil
}

// Donate starts a checkout for a campaign and returns the hosted checkout.
func (s *CampaignService) Donate(ctx context.Context, id int64, in model.DonationInput) (*model.Checkout, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out model.Checkout
	if err := s.api.Post(ctx, idPath("/campaigns/%d/donate", id), donationBody(in), &out); err != nil {
		return nil, fmt.Errorf("donate to campaign %d: %w", id, err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("donate to campaign %d: %w: no checkout url", id, apiclient.ErrDecode)
	}
	return &out, nil
}

// VerifyDonation confirms a completed checkout session with the backend.
func (s *CampaignService) VerifyDonation(ctx context.Context, id int64, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	if err := s.api.Post(ctx, idPath("/campaigns/%d/verify_donation", id), body, nil); err != nil {
		return fmt.Errorf("verify donation: %w", err)
	}
	return nil
}

// Contact sends a message to the founder or the site admins.
func (s *CampaignService) Contact(ctx context.Context, id int64, to ContactTarget, msg model.ContactMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	var path string
	switch to {
	case ContactFounder:
		path = idPath("/campaigns/%d/contact_founder", id)
	case ContactAdmin:
		path = idPath("/campaigns/%d/contact_to_admin", id)
	default:
		return fmt.Errorf("%w: unknown contact target %q", model.ErrInvalidInput, to)
	}
	if err := s.api.Post(ctx, path, msg, nil); err != nil {
		return fmt.Errorf("contact %s: %w", to, err)
	}
	return nil
}

// StripeOnboarding creates a connected account for email and returns the
// hosted onboarding link.
func (s *CampaignService) StripeOnboarding(ctx context.Context, email string) (*model.OnboardingLink, error) {
	if !model.ValidEmail(email) {
		v := &model.ValidationError{}
		v.Add("email", "is invalid")
		return nil, v
	}
	var acc model.StripeAccount
	if err := s.api.Post(ctx, "/stripe_accounts", map[string]string{"email": email}, &acc); err != nil {
		return nil, fmt.Errorf("create stripe account: %w", err)
	}
	var link model.OnboardingLink
	if err := s.api.Post(ctx, "/stripe_accounts/link", map[string]string{"account": acc.AccountID}, &link); err != nil {
		return nil, fmt.Errorf("stripe onboarding link: %w", err)
	}
	return &link, nil
}

func donationBody(in model.DonationInput) map[string]any {
	body := map[string]any{
		"amount":               in.MinorUnits(),
		"currency":             in.Currency,
		"frequency":            in.Frequency,
		"full_name":            strings.TrimSpace(in.FullName),
		"include_name":         in.IncludeName,
		"subscribe_newsletter": in.SubscribeNewsletter,
	}
	if in.SuccessURL != "" {
		body["success_url"] = in.SuccessURL
	}
	if in.CancelURL != "" {
		body["cancel_url"] = in.CancelURL
	}
	return body
}

package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/model"
)

// DonationService handles general (non-campaign) donations.
type DonationService struct {
	api API
}

// NewDonationService creates a DonationService.
func NewDonationService(api API) *DonationService {
	return &DonationService{api: api}
}

// List returns public donations.
func (s *DonationService) List(ctx context.Context) ([]model.Donation, error) {
	var out []model.Donation
	if err := s.api.Get(ctx, "/donations", &out); err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return out, nil
}

// Create opens a checkout session. The caller sends the donor to the
// payment processor with the returned session ID.
func (s *DonationService) Create(ctx context.Context, in model.DonationInput) (*model.Checkout, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out model.Checkout
	if err := s.api.Post(ctx, "/donations", donationBody(in), &out); err != nil {
		return nil, fmt.Errorf("create donation: %w", err)
	}
	if out.SessionID == "" && out.URL == "" {
		return nil, fmt.Errorf("create donation: %w: no session id", apiclient.ErrDecode)
	}
	return &out, nil
}

// Success fetches the details of a completed checkout session.
func (s *DonationService) Success(ctx context.Context, sessionID string) (*model.PaymentDetails, error) {
	if sessionID == "" {
		v := &model.ValidationError{}
		v.Add("session_id", "can't be blank")
		return nil, v
	}
	var out model.PaymentDetails
	q := url.Values{"session_id": {sessionID}}
	if err := s.api.Get(ctx, "/donations/success", &out, apiclient.WithQuery(q)); err != nil {
		return nil, fmt.Errorf("donation details: %w", err)
	}
	return &out, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/greencycle/greencycle/internal/model"
)

// SubscriberService manages the newsletter directory.
type SubscriberService struct {
	api API
}

// NewSubscriberService creates a SubscriberService.
func NewSubscriberService(api API) *SubscriberService {
	return &SubscriberService{api: api}
}

// List returns public subscribers.
func (s *SubscriberService) List(ctx context.Context) ([]model.Subscriber, error) {
	var out []model.Subscriber
	if err := s.api.Get(ctx, "/subscribers", &out); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return out, nil
}

// Create signs up a subscriber.
func (s *SubscriberService) Create(ctx context.Context, in model.SubscriberInput) (*model.Subscriber, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out model.Subscriber
	if err := s.api.Post(ctx, "/subscribers", map[string]any{"subscriber": in}, &out); err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return &out, nil
}

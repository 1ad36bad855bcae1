package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/greencycle/greencycle/internal/model"
)

// CheckoutKind says what a pending checkout pays for.
type CheckoutKind string

const (
	CampaignCheckout CheckoutKind = "campaign"
	GeneralCheckout  CheckoutKind = "general"
)

// sessionPlaceholder is substituted by the payment processor on redirect.
const sessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// ErrUnknownCheckout is returned when waiting on a checkout that was never
// registered.
var ErrUnknownCheckout = errors.New("unknown checkout")

// CampaignVerifier confirms a campaign donation with the backend.
type CampaignVerifier interface {
	VerifyDonation(ctx context.Context, campaignID int64, sessionID string) error
}

// DonationVerifier fetches the details of a general donation.
type DonationVerifier interface {
	Success(ctx context.Context, sessionID string) (*model.PaymentDetails, error)
}

// PendingCheckout is a checkout waiting for the browser to come back.
type PendingCheckout struct {
	State      string
	Kind       CheckoutKind
	CampaignID int64
	SuccessURL string
	CancelURL  string

	done chan Outcome
}

// Outcome is how a checkout ended.
type Outcome struct {
	State      string
	Kind       CheckoutKind
	CampaignID int64
	SessionID  string
	Canceled   bool
	Details    *model.PaymentDetails
	Err        error
}

// CheckoutHandler correlates checkout redirects with the command that
// started them.
type CheckoutHandler struct {
	baseURL   string
	campaigns CampaignVerifier
	donations DonationVerifier
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*PendingCheckout
}

// NewCheckoutHandler creates a CheckoutHandler whose redirect URLs point at
// baseURL.
func NewCheckoutHandler(baseURL string, campaigns CampaignVerifier, donations DonationVerifier, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		baseURL:   strings.TrimRight(baseURL, "/"),
		campaigns: campaigns,
		donations: donations,
		logger:    logger.With("component", "checkout"),
		pending:   make(map[string]*PendingCheckout),
	}
}

// Begin registers a checkout and returns the redirect URLs to hand to the
// payment processor.
func (h *CheckoutHandler) Begin(kind CheckoutKind, campaignID int64) (*PendingCheckout, error) {
	switch kind {
	case CampaignCheckout:
		if campaignID <= 0 {
			return nil, fmt.Errorf("%w: campaign id required", model.ErrInvalidInput)
		}
	case GeneralCheckout:
		campaignID = 0
	default:
		return nil, fmt.Errorf("%w: unknown checkout kind %q", model.ErrInvalidInput, kind)
	}

	state := ulid.Make().String()
	p := &PendingCheckout{
		State:      state,
		Kind:       kind,
		CampaignID: campaignID,
		SuccessURL: h.baseURL + "/checkout/success?state=" + state + "&session_id=" + sessionPlaceholder,
		CancelURL:  h.baseURL + "/checkout/cancel?state=" + state,
		done:       make(chan Outcome, 1),
	}

	h.mu.Lock()
	h.pending[state] = p
	h.mu.Unlock()

	h.logger.Debug("checkout registered", slog.String("state", state), slog.String("kind", string(kind)))
	return p, nil
}

// Wait blocks until p completes or ctx ends. A canceled wait forgets the
// checkout.
func (h *CheckoutHandler) Wait(ctx context.Context, p *PendingCheckout) (Outcome, error) {
	if p == nil || p.done == nil {
		return Outcome{}, ErrUnknownCheckout
	}
	select {
	case out := <-p.done:
		return out, nil
	case <-ctx.Done():
		h.take(p.State)
		return Outcome{}, ctx.Err()
	}
}

// Pending reports how many checkouts are waiting.
func (h *CheckoutHandler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

func (h *CheckoutHandler) take(state string) *PendingCheckout {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[state]
	if !ok {
		return nil
	}
	delete(h.pending, state)
	return p
}

func (h *CheckoutHandler) lookup(w http.ResponseWriter, r *http.Request) *PendingCheckout {
	state := r.URL.Query().Get("state")
	if _, err := ulid.ParseStrict(state); err != nil {
		writePage(w, http.StatusBadRequest, "This link is not valid.")
		return nil
	}
	p := h.take(state)
	if p == nil {
		writePage(w, http.StatusNotFound, "This checkout is unknown or was already completed.")
		return nil
	}
	return p
}

// Success receives the processor's success redirect and verifies the
// donation.
//
// GET /checkout/success?state=...&session_id=...
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" || sessionID == sessionPlaceholder {
		writePage(w, http.StatusBadRequest, "The payment session is missing.")
		return
	}

	p := h.lookup(w, r)
	if p == nil {
		return
	}

	out := Outcome{State: p.State, Kind: p.Kind, CampaignID: p.CampaignID, SessionID: sessionID}
	switch p.Kind {
	case CampaignCheckout:
		out.Err = h.campaigns.VerifyDonation(r.Context(), p.CampaignID, sessionID)
	default:
		out.Details, out.Err = h.donations.Success(r.Context(), sessionID)
	}
	p.done <- out

	if out.Err != nil {
		h.logger.Warn("donation verification failed",
			slog.String("state", p.State),
			slog.String("error", out.Err.Error()),
		)
		writePage(w, http.StatusBadGateway, "Your payment went through but we could not confirm it yet. Check the terminal for details.")
		return
	}
	h.logger.Info("donation verified", slog.String("state", p.State), slog.String("kind", string(p.Kind)))
	writePage(w, http.StatusOK, "Thank you for your donation! You can close this tab.")
}

// Cancel receives the processor's cancel redirect.
//
// GET /checkout/cancel?state=...
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p := h.lookup(w, r)
	if p == nil {
		return
	}
	p.done <- Outcome{State: p.State, Kind: p.Kind, CampaignID: p.CampaignID, Canceled: true}
	h.logger.Info("checkout canceled", slog.String("state", p.State))
	writePage(w, http.StatusOK, "Donation canceled. You can close this tab.")
}

func writePage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, msg)
}

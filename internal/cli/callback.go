package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/greencycle/greencycle/internal/handler"
	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/server"
)

// ErrCheckoutTimeout is returned when the browser never comes back from the
// payment page.
var ErrCheckoutTimeout = errors.New("timed out waiting for the checkout to finish")

// callback is a running checkout callback server.
type callback struct {
	srv      *server.Server
	checkout *handler.CheckoutHandler
	cancel   context.CancelFunc
	done     chan error
}

// startCallback binds the callback server and serves it in the background.
// The router is built after binding so redirect URLs carry the real port.
func (a *App) startCallback(ctx context.Context, addr string) (*callback, error) {
	var router http.Handler
	srv := server.New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}), addr, a.Config.ShutdownTimeout, a.Logger)
	if err := srv.Listen(); err != nil {
		return nil, err
	}

	checkout := handler.NewCheckoutHandler("http://"+srv.Addr(), a.Campaigns, a.Donations, a.Logger)
	router = server.NewRouter(checkout, handler.NewHealthHandler(a.healthChecks()), a.Logger)
	srv.OnShutdown("connections", func(context.Context) error {
		a.Close()
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	cb := &callback{srv: srv, checkout: checkout, cancel: cancel, done: make(chan error, 1)}
	go func() {
		cb.done <- srv.Run(ctx)
	}()
	return cb, nil
}

// stop shuts the server down and waits for it.
func (cb *callback) stop() error {
	cb.cancel()
	return <-cb.done
}

func (a *App) healthChecks() map[string]handler.HealthChecker {
	checks := map[string]handler.HealthChecker{"redis": nil}
	if a.cache != nil {
		checks["redis"] = a.cache
	}
	return checks
}

func (a *App) callbackAddr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(a.Config.CallbackPort))
}

func runServeCallback(ctx context.Context, a *App, args []string) error {
	fs, _ := newFlagSet(a, "serve-callback")
	addr := fs.String("addr", a.callbackAddr(), "listen address")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	cb, err := a.startCallback(ctx, *addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Streams.Err, "Listening on http://%s (Ctrl+C to stop)\n", cb.srv.Addr())
	return <-cb.done
}

type donateView struct {
	Checkout   *model.Checkout       `json:"checkout"`
	CampaignID int64                 `json:"campaign_id,omitempty"`
	SessionID  string                `json:"session_id,omitempty"`
	Canceled   bool                  `json:"canceled"`
	Details    *model.PaymentDetails `json:"details,omitempty"`
}

func runDonate(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "donate")
	in := model.DonationInput{Currency: "USD", Frequency: "once"}
	campaignID := fs.Int64("campaign", 0, "campaign id; omit to donate to the platform")
	fs.Float64Var(&in.Amount, "amount", 0, "amount in major units, e.g. 25.50")
	fs.StringVar(&in.Currency, "currency", in.Currency, "USD, EUR or GBP")
	fs.StringVar(&in.Frequency, "frequency", in.Frequency, "once, monthly or annually")
	fs.StringVar(&in.FullName, "name", "", "donor full name")
	fs.BoolVar(&in.IncludeName, "show-name", false, "show your name on the donor list")
	fs.BoolVar(&in.SubscribeNewsletter, "newsletter", false, "subscribe to the newsletter")
	timeout := fs.Duration("timeout", a.Config.CallbackTimeout, "how long to wait for the checkout")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if in.FullName == "" {
		if u := a.Session.CurrentUser(); u != nil {
			in.FullName = u.Username
		}
	}
	if err := in.Validate(); err != nil {
		return err
	}

	cb, err := a.startCallback(ctx, a.callbackAddr())
	if err != nil {
		return err
	}
	defer func() {
		if err := cb.stop(); err != nil {
			a.Logger.Warn("callback server shutdown", "error", err)
		}
	}()

	kind := handler.GeneralCheckout
	if *campaignID > 0 {
		kind = handler.CampaignCheckout
	}
	pending, err := cb.checkout.Begin(kind, *campaignID)
	if err != nil {
		return err
	}
	in.SuccessURL = pending.SuccessURL
	in.CancelURL = pending.CancelURL

	var checkout *model.Checkout
	if kind == handler.CampaignCheckout {
		checkout, err = a.Campaigns.Donate(ctx, *campaignID, in)
	} else {
		checkout, err = a.Donations.Create(ctx, in)
	}
	if err != nil {
		return err
	}

	if checkout.URL != "" {
		fmt.Fprintf(a.Streams.Err, "Open this link to complete your donation:\n%s\n", checkout.URL)
	} else {
		fmt.Fprintf(a.Streams.Err, "Checkout session %s created. Complete it with publishable key %q.\n", checkout.SessionID, a.Config.StripePublishableKey)
	}
	fmt.Fprintln(a.Streams.Err, "Waiting for the payment page to redirect back...")

	waitCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	out, err := cb.checkout.Wait(waitCtx, pending)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCheckoutTimeout
	}
	if err != nil {
		return err
	}
	if out.Err != nil {
		return fmt.Errorf("payment received but not confirmed: %w", out.Err)
	}

	view := donateView{Checkout: checkout, CampaignID: out.CampaignID, SessionID: out.SessionID, Canceled: out.Canceled, Details: out.Details}
	return a.render(*format, view, func(w io.Writer) {
		switch {
		case out.Canceled:
			fmt.Fprintln(w, "Donation canceled.")
		case out.Details != nil:
			fmt.Fprintln(w, "Thank you for your donation!")
			writePayment(w, out.Details)
		default:
			fmt.Fprintf(w, "Thank you! Your donation to campaign %d is confirmed.\n", out.CampaignID)
		}
	})
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/service"
)

// topDonors is how many donors the donors command ranks.
const topDonors = 10

func campaignCommands() []command {
	return []command{
		{name: "list", usage: "list campaigns", run: runCampaignsList},
		{name: "show", usage: "show a campaign and its recent donations: show ID", run: runCampaignsShow},
		{name: "create", usage: "propose a campaign", run: runCampaignsCreate},
		{name: "donors", usage: "donation totals and top donors: donors ID", run: runCampaignsDonors},
		{name: "contact", usage: "message the founder or the admins: contact ID MESSAGE", run: runCampaignsContact},
		{name: "stripe-onboard", usage: "connect a Stripe account to receive donations", run: runCampaignsStripeOnboard},
	}
}

func donationCommands() []command {
	return []command{
		{name: "list", usage: "list recent donations", run: runDonationsList},
		{name: "show", usage: "payment details of a checkout: show SESSION_ID", run: runDonationsShow},
	}
}

func runCampaignsList(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "campaigns list")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	campaigns, err := a.Campaigns.List(ctx)
	if err != nil {
		return err
	}
	return a.render(*format, campaigns, func(w io.Writer) { writeCampaigns(w, campaigns) })
}

type campaignView struct {
	Campaign  *model.Campaign  `json:"campaign"`
	Donations []model.Donation `json:"donations"`
	Failed    []string         `json:"failed,omitempty"`
}

func runCampaignsShow(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "campaigns show")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "campaign id")
	if err != nil {
		return err
	}

	view := campaignView{}
	errs := service.FanOut(ctx,
		service.Branch{Name: "campaign", Run: func(ctx context.Context) (err error) {
			view.Campaign, err = a.Campaigns.Get(ctx, id)
			return err
		}},
		service.Branch{Name: "donations", Run: func(ctx context.Context) (err error) {
			view.Donations, err = a.Campaigns.Donations(ctx, id)
			return err
		}},
	)
	if err := errs["campaign"]; err != nil {
		return err
	}
	a.warnFailed(errs)
	view.Failed = failedNames(errs)

	return a.render(*format, view, func(w io.Writer) {
		c := view.Campaign
		fmt.Fprintf(w, "%s\n", c.Title)
		fmt.Fprintf(w, "Status\t%s\nLocation\t%s\nGoal\t%s\n", c.Status, c.Location, c.Goal)
		if c.Founder != nil {
			fmt.Fprintf(w, "Founder\t%s <%s>\n", c.Founder.Name, c.Founder.Email)
		}
		fmt.Fprintf(w, "Accepts donations\t%s\n\n", yesNo(c.IsGetDonated))
		fmt.Fprintln(w, c.Description)
		fmt.Fprintln(w, "\nRECENT DONATIONS")
		writeDonations(w, view.Donations)
	})
}

func runCampaignsCreate(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "campaigns create")
	var in model.CampaignInput
	fs.StringVar(&in.Title, "title", "", "campaign title")
	fs.StringVar(&in.Description, "description", "", "what the campaign is about")
	fs.StringVar(&in.Goal, "goal", "", "campaign goal")
	fs.StringVar(&in.Location, "location", "", "where it takes place")
	fs.StringVar(&in.ThumbnailURL, "thumbnail", "", "thumbnail image URL")
	fs.StringVar(&in.Email, "email", "", "founder contact email")
	fs.BoolVar(&in.IsGetDonated, "donations", false, "accept donations (requires a connected Stripe account)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	res, err := a.Campaigns.Create(ctx, in)
	if errors.Is(err, service.ErrStripeRequired) {
		fmt.Fprintf(a.Streams.Err, "Run `greencycle campaigns stripe-onboard -email %s` first.\n", in.Email)
	}
	if err != nil {
		return err
	}
	return a.render(*format, res, func(w io.Writer) {
		if res.Campaign != nil {
			fmt.Fprintf(w, "Submitted campaign %d: %s\n", res.Campaign.ID, res.Campaign.Title)
			return
		}
		fmt.Fprintln(w, "Campaign submitted for review.")
	})
}

func runCampaignsDonors(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "campaigns donors")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "campaign id")
	if err != nil {
		return err
	}

	donations, err := a.Campaigns.AllDonations(ctx, id)
	if err != nil {
		return err
	}
	sum := model.Summarize(donations, topDonors)
	return a.render(*format, sum, func(w io.Writer) {
		fmt.Fprintf(w, "Total\t%s\t(%d donations)\n\nTOP DONORS\n", formatMoney(sum.Total, sum.Currency), len(donations))
		writeDonations(w, sum.TopDonors)
		fmt.Fprintln(w, "\nBY DAY\nDATE\tAMOUNT")
		for _, d := range sum.ByDate {
			fmt.Fprintf(w, "%s\t%s\n", d.Date, formatMoney(d.Amount, sum.Currency))
		}
	})
}

func runCampaignsContact(ctx context.Context, a *App, args []string) error {
	fs, _ := newFlagSet(a, "campaigns contact")
	var msg model.ContactMessage
	fs.StringVar(&msg.FromName, "name", "", "your name")
	fs.StringVar(&msg.FromEmail, "email", "", "your email")
	admin := fs.Bool("admin", false, "write to the site admins instead of the founder")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "campaign id")
	if err != nil {
		return err
	}
	msg.Message = textArg(pos, 1, "")
	if u := a.Session.CurrentUser(); u != nil {
		if msg.FromName == "" {
			msg.FromName = u.Username
		}
		if msg.FromEmail == "" {
			msg.FromEmail = u.Email
		}
	}

	to := service.ContactFounder
	if *admin {
		to = service.ContactAdmin
	}
	if err := a.Campaigns.Contact(ctx, id, to, msg); err != nil {
		return err
	}
	fmt.Fprintf(a.Streams.Out, "Message sent to the %s.\n", to)
	return nil
}

func runCampaignsStripeOnboard(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "campaigns stripe-onboard")
	email := fs.String("email", "", "email of the account to connect")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if *email == "" {
		if u := a.Session.CurrentUser(); u != nil {
			*email = u.Email
		}
	}

	link, err := a.Campaigns.StripeOnboarding(ctx, *email)
	if err != nil {
		return err
	}
	return a.render(*format, link, func(w io.Writer) {
		fmt.Fprintf(w, "Finish connecting your account here:\n%s\n", link.URL)
	})
}

func runDonationsList(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "donations list")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	donations, err := a.Donations.List(ctx)
	if err != nil {
		return err
	}
	return a.render(*format, donations, func(w io.Writer) { writeDonations(w, donations) })
}

func runDonationsShow(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "donations show")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	details, err := a.Donations.Success(ctx, textArg(pos, 0, ""))
	if err != nil {
		return err
	}
	return a.render(*format, details, func(w io.Writer) { writePayment(w, details) })
}

func writeCampaigns(w io.Writer, campaigns []model.Campaign) {
	fmt.Fprintln(w, "ID\tTITLE\tLOCATION\tSTATUS\tDONATIONS")
	for _, c := range campaigns {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ID, truncate(c.Title, 40), c.Location, c.Status, yesNo(c.IsGetDonated))
	}
}

func writeDonations(w io.Writer, donations []model.Donation) {
	fmt.Fprintln(w, "DONOR\tAMOUNT\tFREQUENCY\tWHEN")
	for _, d := range donations {
		name := d.FullName
		if strings.TrimSpace(name) == "" {
			name = "Anonymous"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, formatMoney(d.Amount, d.Currency), d.Frequency, formatTime(&d.CreatedAt))
	}
}

func writePayment(w io.Writer, p *model.PaymentDetails) {
	fmt.Fprintf(w, "Name\t%s\n", p.FullName)
	fmt.Fprintf(w, "Amount\t%s\n", formatMoney(p.Amount, p.Currency))
	fmt.Fprintf(w, "Frequency\t%s\n", p.Frequency)
	if p.Email != "" {
		fmt.Fprintf(w, "Email\t%s\n", p.Email)
	}
	fmt.Fprintf(w, "Newsletter\t%s\n", yesNo(p.SubscribeNewsletter))
}

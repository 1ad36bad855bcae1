package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/service"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

var errNotSignedIn = errors.New("not signed in")

func runVersion(_ context.Context, a *App, args []string) error {
	fs, _ := newFlagSet(a, "version")
	short := fs.Bool("short", false, "print the version only")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if !*short {
		fmt.Fprintln(a.Streams.Out, figure.NewFigure("greencycle", "", true).String())
	}
	fmt.Fprintln(a.Streams.Out, "greencycle", Version)
	return nil
}

func runLogin(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password; read from stdin when empty")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return usageErrorf("login: -email is required")
	}
	if *password == "" {
		pw, err := a.readLine()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		*password = pw
	}

	user, err := a.Session.SignIn(ctx, *email, *password)
	if errors.Is(err, apiclient.ErrUnauthorized) {
		if msgs := apiclient.Messages(err); len(msgs) > 0 {
			return errors.New(strings.Join(msgs, "; "))
		}
		return errors.New("invalid email or password")
	}
	if err != nil {
		return err
	}
	return a.render(*format, user, func(w io.Writer) {
		fmt.Fprintf(w, "Signed in as %s <%s>\n", user.Username, user.Email)
	})
}

func runLogout(ctx context.Context, a *App, args []string) error {
	fs, _ := newFlagSet(a, "logout")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	a.Session.SignOut(ctx)
	fmt.Fprintln(a.Streams.Out, "Signed out.")
	return nil
}

func runWhoami(_ context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "whoami")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	user := a.Session.CurrentUser()
	if user == nil {
		return errNotSignedIn
	}
	return a.render(*format, user, func(w io.Writer) {
		fmt.Fprintf(w, "ID\t%d\nUsername\t%s\nEmail\t%s\n", user.ID, user.Username, user.Email)
	})
}

func runRegister(ctx context.Context, a *App, args []string) error {
	fs, _ := newFlagSet(a, "register")
	var in model.Registration
	fs.StringVar(&in.Username, "username", "", "display name")
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "account password; read from stdin when empty")
	fs.StringVar(&in.PasswordConfirmation, "confirm", "", "password confirmation; defaults to -password")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if in.Password == "" {
		pw, err := a.readLine()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		in.Password = pw
	}
	if in.PasswordConfirmation == "" {
		in.PasswordConfirmation = in.Password
	}

	if err := a.Session.Register(ctx, in); err != nil {
		return err
	}
	fmt.Fprintf(a.Streams.Out, "Registered %s. Run `greencycle login -email %s` to sign in.\n", in.Username, in.Email)
	return nil
}

type homeView struct {
	Blogs     []model.Blog     `json:"blogs"`
	Campaigns []model.Campaign `json:"campaigns"`
	Items     []model.Item     `json:"items"`
	Donations []model.Donation `json:"donations"`
	Failed    []string         `json:"failed,omitempty"`
}

func runHome(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "home")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	feed := service.Home(ctx, a.Blogs, a.Campaigns, a.Items, a.Donations)
	a.warnFailed(feed.Errors)
	view := homeView{
		Blogs:     feed.Blogs,
		Campaigns: feed.Campaigns,
		Items:     feed.Items,
		Donations: feed.Donations,
		Failed:    failedNames(feed.Errors),
	}
	return a.render(*format, view, func(w io.Writer) {
		fmt.Fprintln(w, "LATEST BLOGS")
		writeBlogs(w, feed.Blogs)
		fmt.Fprintln(w, "\nCAMPAIGNS")
		writeCampaigns(w, feed.Campaigns)
		fmt.Fprintln(w, "\nRECYCLEPEDIA")
		writeItems(w, feed.Items)
		fmt.Fprintln(w, "\nRECENT DONATIONS")
		writeDonations(w, feed.Donations)
	})
}

// readLine reads one line of input, without the newline.
func (a *App) readLine() (string, error) {
	if a.input == nil {
		if a.Streams.In == nil {
			return "", io.EOF
		}
		a.input = bufio.NewScanner(a.Streams.In)
	}
	if !a.input.Scan() {
		if err := a.input.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(a.input.Text(), "\r"), nil
}

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/greencycle/greencycle/internal/apiclient"
	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/session"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// errUsage marks a malformed command line.
var errUsage = errors.New("usage")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

// command is one verb. Groups carry subcommands instead of run.
type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *App, args []string) error
	subs  []command
}

func commands() []command {
	return []command{
		{name: "version", usage: "print the version banner", run: runVersion},
		{name: "login", usage: "sign in with email and password", run: runLogin},
		{name: "logout", usage: "sign out and forget the token", run: runLogout},
		{name: "whoami", usage: "show the signed-in user", run: runWhoami},
		{name: "register", usage: "create a blogger account", run: runRegister},
		{name: "home", usage: "show the landing page", run: runHome},
		{name: "blogs", usage: "read and write blogs", subs: blogCommands()},
		{name: "bloggers", usage: "browse bloggers", subs: bloggerCommands()},
		{name: "campaigns", usage: "browse and start campaigns", subs: campaignCommands()},
		{name: "donate", usage: "donate to a campaign or the platform", run: runDonate},
		{name: "donations", usage: "list donations and payment details", subs: donationCommands()},
		{name: "items", usage: "browse the recyclepedia", subs: itemCommands()},
		{name: "subscribers", usage: "newsletter subscribers", subs: subscriberCommands()},
		{name: "games", usage: "manage game images", subs: gameCommands()},
		{name: "ai", usage: "classify trash with the AI service", subs: aiCommands()},
		{name: "play", usage: "play a sorting game", subs: playCommands()},
		{name: "catalog", usage: "offline recyclepedia mirror", subs: catalogCommands()},
		{name: "serve-callback", usage: "run the checkout callback server", run: runServeCallback},
	}
}

// Run executes one command line and returns the process exit code. Every
// command runs with a login prompt subscribed to the unauthorized broadcast,
// so however many requests fail with 401 the user is told once.
func Run(ctx context.Context, a *App, args []string) int {
	global := flag.NewFlagSet("greencycle", flag.ContinueOnError)
	global.SetOutput(a.Streams.Err)
	stats := global.Bool("stats", false, "print request metrics to stderr on exit")
	global.Usage = func() { printUsage(a.Streams.Err, "greencycle", commands()) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}

	prompt := session.NewLoginPrompt(a.Streams.Err, "")
	err := a.Registry.Scoped(prompt.Notify, func() error {
		return dispatch(ctx, a, "greencycle", commands(), global.Args())
	})
	if *stats {
		printStats(a.Streams.Err, a.Metrics.Snapshot())
	}
	return a.report(err, prompt)
}

func dispatch(ctx context.Context, a *App, prefix string, cmds []command, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(a.Streams.Err, prefix, cmds)
		if len(args) == 0 {
			return usageErrorf("%s: missing command", prefix)
		}
		return nil
	}
	for _, c := range cmds {
		if c.name != args[0] {
			continue
		}
		if c.subs != nil {
			return dispatch(ctx, a, prefix+" "+c.name, c.subs, args[1:])
		}
		return c.run(ctx, a, args[1:])
	}
	printUsage(a.Streams.Err, prefix, cmds)
	return usageErrorf("%s: unknown command %q", prefix, args[0])
}

func printUsage(w io.Writer, prefix string, cmds []command) {
	fmt.Fprintf(w, "Usage: %s <command> [flags] [args]\n\nCommands:\n", prefix)
	names := make([]string, 0, len(cmds))
	byName := make(map[string]command, len(cmds))
	for _, c := range cmds {
		names = append(names, c.name)
		byName[c.name] = c
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-16s %s\n", n, byName[n].usage)
	}
}

// report prints err the way the user should see it and picks the exit code.
func (a *App) report(err error, prompt *session.LoginPrompt) int {
	if err == nil {
		return ExitOK
	}
	w := a.Streams.Err

	switch {
	case errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(w, strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
		return ExitUsage
	case errors.Is(err, apiclient.ErrUnauthorized):
		if !prompt.Shown() {
			prompt.Notify()
		}
	case errors.Is(err, apiclient.ErrForbidden):
		fmt.Fprintln(w, "You are not allowed to do that.")
	case errors.Is(err, apiclient.ErrValidation), errors.Is(err, model.ErrInvalidInput):
		msgs := validationMessages(err)
		if len(msgs) == 0 {
			fmt.Fprintln(w, "error:", err)
		}
		for _, m := range msgs {
			fmt.Fprintln(w, "error:", m)
		}
	case errors.Is(err, apiclient.ErrNotFound):
		fmt.Fprintln(w, "Not found.")
	case errors.Is(err, apiclient.ErrTransport):
		fmt.Fprintln(w, "Network error: the service could not be reached.")
		a.Logger.Debug("transport failure", "error", err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, "Interrupted.")
	default:
		fmt.Fprintln(w, "error:", err)
	}
	return ExitError
}

func validationMessages(err error) []string {
	var v *model.ValidationError
	if errors.As(err, &v) {
		return v.Messages()
	}
	return apiclient.Messages(err)
}

// newFlagSet returns a flag set writing usage to stderr, with the shared
// -format flag.
func newFlagSet(a *App, name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Streams.Err)
	format := fs.String("format", formatText, "output format: text or json")
	return fs, format
}

// parseArgs parses flags wherever they appear among the positional
// arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, usageErrorf("%s: %v", fs.Name(), err)
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// idArg parses the i-th positional argument as a numeric id.
func idArg(args []string, i int, name string) (int64, error) {
	if i >= len(args) {
		return 0, usageErrorf("missing %s", name)
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid %s %q", name, args[i])
	}
	return id, nil
}

// textArg joins the positionals from i on, or falls back to the flag value.
func textArg(args []string, i int, fallback string) string {
	if i < len(args) {
		return strings.Join(args[i:], " ")
	}
	return fallback
}

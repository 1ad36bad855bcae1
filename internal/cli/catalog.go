package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/repository"
	"github.com/greencycle/greencycle/internal/service"
)

// defaultSyncPageSize is the page size used to walk the catalog on sync.
const defaultSyncPageSize = 100

func itemCommands() []command {
	return []command{
		{name: "list", usage: "list recyclepedia items", run: runItemsList},
		{name: "show", usage: "show an item with facilities: show ID", run: runItemsShow},
		{name: "sections", usage: "list item sections", run: runItemsSections},
	}
}

func catalogCommands() []command {
	return []command{
		{name: "sync", usage: "copy the recyclepedia into the local database", run: runCatalogSync},
		{name: "search", usage: "search the local copy: search [TEXT]", run: runCatalogSearch},
	}
}

func subscriberCommands() []command {
	return []command{
		{name: "list", usage: "list newsletter subscribers", run: runSubscribersList},
		{name: "add", usage: "subscribe to the newsletter", run: runSubscribersAdd},
	}
}

func gameCommands() []command {
	return []command{
		{name: "list", usage: "list games", run: runGamesList},
		{name: "show", usage: "show a game and its images: show ID", run: runGamesShow},
		{name: "upload", usage: "add an image to a game: upload ID (-file PATH | -url URL)", run: runGamesUpload},
	}
}

func runItemsList(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "items list")
	var q service.ItemQuery
	fs.Int64Var(&q.SectionID, "section", 0, "only items in this section id")
	fs.StringVar(&q.NameContains, "q", "", "name contains")
	fs.StringVar(&q.Sort, "sort", "", `sort expression, e.g. "name asc"`)
	fs.IntVar(&q.Page.Page, "page", 0, "page number")
	fs.IntVar(&q.PerPage, "per-page", 0, "page size")
	all := fs.Bool("all", false, "fetch every page")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if !*all {
		page, err := a.Items.Items(ctx, q)
		if err != nil {
			return err
		}
		return a.render(*format, page, func(w io.Writer) {
			writeItems(w, page.Items)
			p := page.Pagination
			fmt.Fprintf(w, "\npage %d of %d (%d items)\n", p.CurrentPage, p.TotalPages, p.TotalCount)
		})
	}

	var items []model.Item
	err := a.Items.Walk(ctx, q, func(page *model.ItemPage) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return err
	}
	return a.render(*format, items, func(w io.Writer) { writeItems(w, items) })
}

func runItemsShow(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "items show")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "item id")
	if err != nil {
		return err
	}

	item, err := a.Items.Item(ctx, id)
	if err != nil {
		return err
	}
	return a.render(*format, item, func(w io.Writer) { writeItem(w, item) })
}

func runItemsSections(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "items sections")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	sections, err := a.Items.Sections(ctx)
	if err != nil {
		return err
	}
	return a.render(*format, sections, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tSLUG")
		for _, s := range sections {
			fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.Name, s.Slug)
		}
	})
}

func runCatalogSync(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "catalog sync")
	perPage := fs.Int("per-page", defaultSyncPageSize, "items fetched per request")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	repo, err := a.Repository(ctx)
	if err != nil {
		return err
	}
	report, err := a.Items.SyncCatalog(ctx, repo, *perPage)
	if err != nil {
		return err
	}
	return a.render(*format, report, func(w io.Writer) {
		fmt.Fprintf(w, "Synced %d sections and %d items (%d pages).\n", report.Sections, report.Items, report.Pages)
	})
}

type catalogSearchView struct {
	Items []model.Item            `json:"items"`
	Stats repository.CatalogStats `json:"stats"`
}

func runCatalogSearch(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "catalog search")
	var f repository.CatalogFilter
	fs.Int64Var(&f.SectionID, "section", 0, "only items in this section id")
	fs.StringVar(&f.FacilityCategory, "facility", "", "only items with a facility of this category")
	fs.IntVar(&f.Limit, "limit", 0, "maximum results")
	recyclable := fs.String("recyclable", "", "filter by recyclability: true or false")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	f.Text = textArg(pos, 0, "")
	if *recyclable != "" {
		b, err := strconv.ParseBool(*recyclable)
		if err != nil {
			return usageErrorf("catalog search: invalid -recyclable %q", *recyclable)
		}
		f.Recyclable = &b
	}

	repo, err := a.Repository(ctx)
	if err != nil {
		return err
	}
	view := catalogSearchView{}
	if view.Items, err = repo.SearchItems(ctx, f); err != nil {
		return err
	}
	if view.Stats, err = repo.Stats(ctx); err != nil {
		return err
	}
	return a.render(*format, view, func(w io.Writer) {
		writeItems(w, view.Items)
		fmt.Fprintf(w, "\n%d of %d mirrored items, last synced %s\n", len(view.Items), view.Stats.Items, formatTime(view.Stats.LastSynced))
	})
}

func runSubscribersList(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "subscribers list")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	subs, err := a.Subscribers.List(ctx)
	if err != nil {
		return err
	}
	return a.render(*format, subs, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tNICKNAME\tSINCE")
		for _, s := range subs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.FullName, s.Nickname, formatTime(&s.CreatedAt))
		}
	})
}

func runSubscribersAdd(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "subscribers add")
	var in model.SubscriberInput
	fs.StringVar(&in.FullName, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "email address")
	fs.StringVar(&in.Nickname, "nickname", "", "nickname")
	fs.StringVar(&in.PhoneNumber, "phone", "", "phone number")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	sub, err := a.Subscribers.Create(ctx, in)
	if err != nil {
		return err
	}
	return a.render(*format, sub, func(w io.Writer) {
		fmt.Fprintf(w, "Subscribed %s.\n", sub.FullName)
	})
}

func runGamesList(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "games list")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	games, err := a.Games.List(ctx)
	if err != nil {
		return err
	}
	return a.render(*format, games, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
		for _, g := range games {
			fmt.Fprintf(w, "%d\t%s\t%s\n", g.ID, g.Name, truncate(g.Description, 60))
		}
	})
}

func runGamesShow(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "games show")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "game id")
	if err != nil {
		return err
	}

	game, err := a.Games.Get(ctx, id)
	if err != nil {
		return err
	}
	images, err := a.Games.Images(ctx, id)
	if err != nil {
		return err
	}
	game.Images = images
	return a.render(*format, game, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n%s\n\n", game.Name, game.Description)
		writeImages(w, images)
	})
}

func runGamesUpload(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "games upload")
	file := fs.String("file", "", "image file to upload")
	imageURL := fs.String("url", "", "image URL to fetch and upload")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "game id")
	if err != nil {
		return err
	}
	if (*file == "") == (*imageURL == "") {
		return usageErrorf("games upload: give exactly one of -file or -url")
	}

	var img *model.GameImage
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		img, err = a.Games.UploadImage(ctx, id, filepath.Base(*file), f)
		if err != nil {
			return err
		}
	} else {
		img, err = a.Games.UploadImageFromURL(ctx, id, *imageURL)
		if err != nil {
			return err
		}
	}
	return a.render(*format, img, func(w io.Writer) {
		fmt.Fprintf(w, "Uploaded image %s\n%s\n", img.ID, img.URL)
	})
}

func writeItems(w io.Writer, items []model.Item) {
	fmt.Fprintln(w, "ID\tNAME\tSECTION\tRECYCLABLE")
	for _, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", it.ID, truncate(it.Name, 40), it.SectionName, yesNo(it.CanRecycle))
	}
}

func writeItem(w io.Writer, it *model.Item) {
	fmt.Fprintf(w, "%s\n", it.Name)
	fmt.Fprintf(w, "Section\t%s\nRecyclable\t%s\n\n", it.SectionName, yesNo(it.CanRecycle))
	fmt.Fprintln(w, it.Description)
	if it.LifeCycle != "" {
		fmt.Fprintf(w, "\nLife cycle\n%s\n", it.LifeCycle)
	}
	if it.RecycleWay != "" {
		fmt.Fprintf(w, "\nHow to recycle\n%s\n", it.RecycleWay)
	}
	if len(it.Facilities) > 0 {
		fmt.Fprintln(w, "\nFACILITIES\nNAME\tCATEGORY")
		for _, f := range it.Facilities {
			fmt.Fprintf(w, "%s\t%s\n", f.Name, f.Category)
		}
	}
	if len(it.RelatedItems) > 0 {
		fmt.Fprintln(w, "\nRELATED\nID\tNAME")
		for _, r := range it.RelatedItems {
			fmt.Fprintf(w, "%d\t%s\n", r.ID, r.Name)
		}
	}
}

func writeImages(w io.Writer, images []model.GameImage) {
	fmt.Fprintln(w, "IMAGE\tNAME\tURL")
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%s\t%s\n", img.ID, img.Name, img.URL)
	}
}

package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/service"
)

func blogCommands() []command {
	return []command{
		{name: "list", usage: "list blogs", run: runBlogsList},
		{name: "show", usage: "show a blog with its comments: show ID", run: runBlogsShow},
		{name: "top", usage: "top bloggers and most viewed blogs", run: runBlogsTop},
		{name: "create", usage: "write a blog", run: runBlogsCreate},
		{name: "edit", usage: "edit a blog: edit ID", run: runBlogsEdit},
		{name: "delete", usage: "delete a blog: delete ID", run: runBlogsDelete},
		{name: "like", usage: "toggle your like: like ID", run: runBlogsLike},
		{name: "save", usage: "toggle your bookmark: save ID", run: runBlogsSave},
		{name: "comments", usage: "list comments: comments ID", run: runBlogsComments},
		{name: "comment", usage: "add a comment: comment ID TEXT", run: runBlogsComment},
		{name: "edit-comment", usage: "edit a comment: edit-comment ID COMMENT_ID TEXT", run: runBlogsEditComment},
		{name: "uncomment", usage: "delete a comment: uncomment ID COMMENT_ID", run: runBlogsUncomment},
	}
}

func bloggerCommands() []command {
	return []command{
		{name: "list", usage: "list bloggers", run: runBloggersList},
		{name: "show", usage: "show a blogger: show ID", run: runBloggersShow},
		{name: "edit", usage: "edit your profile: edit ID", run: runBloggersEdit},
		{name: "activity", usage: "liked, saved and commented blogs: activity ID", run: runBloggersActivity},
	}
}

func runBlogsList(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs list")
	var q service.BlogQuery
	fs.StringVar(&q.TitleContains, "title", "", "title contains")
	fs.StringVar(&q.ContentContains, "content", "", "content contains")
	fs.Int64Var(&q.BloggerID, "blogger", 0, "only blogs by this blogger id")
	fs.StringVar(&q.Sort, "sort", "", `sort expression, e.g. "published_at desc"`)
	fs.IntVar(&q.Page.Page, "page", 0, "page number")
	fs.IntVar(&q.PerPage, "per-page", 0, "page size")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	blogs, err := a.Blogs.List(ctx, q)
	if err != nil {
		return err
	}
	return a.render(*format, blogs, func(w io.Writer) { writeBlogs(w, blogs) })
}

func runBlogsShow(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs show")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}

	th, err := a.Blogs.OpenThread(ctx, id, a.viewerID())
	if err != nil {
		return err
	}
	return a.render(*format, th, func(w io.Writer) {
		b := th.Blog
		fmt.Fprintf(w, "%s\n", b.Title)
		if b.Blogger != nil {
			fmt.Fprintf(w, "by %s\t%s\n", b.Blogger.Username, formatTime(b.PublishedAt))
		}
		fmt.Fprintf(w, "%d views\t%d likes\tliked: %s\tsaved: %s\n\n", b.ViewCount, b.LikesCount, yesNo(th.Liked), yesNo(th.Saved))
		fmt.Fprintln(w, b.Content)
		fmt.Fprintf(w, "\nCOMMENTS (%d)\n", len(th.Comments))
		writeComments(w, th.Comments)
	})
}

type blogTopView struct {
	TopBloggers []model.Blogger `json:"top_bloggers"`
	TopViews    []model.Blog    `json:"top_views"`
	Failed      []string        `json:"failed,omitempty"`
}

func runBlogsTop(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs top")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	idx := a.Blogs.Index(ctx, service.BlogQuery{})
	a.warnFailed(idx.Errors)
	view := blogTopView{TopBloggers: idx.TopBloggers, TopViews: idx.TopViews, Failed: failedNames(idx.Errors)}
	return a.render(*format, view, func(w io.Writer) {
		fmt.Fprintln(w, "TOP BLOGGERS")
		writeBloggers(w, idx.TopBloggers)
		fmt.Fprintln(w, "\nMOST VIEWED")
		writeBlogs(w, idx.TopViews)
	})
}

func blogInputFlags(fs *flag.FlagSet, in *model.BlogInput) {
	fs.StringVar(&in.Title, "title", in.Title, "blog title")
	fs.StringVar(&in.Content, "content", in.Content, "blog body")
	fs.StringVar(&in.ThumbnailURL, "thumbnail", in.ThumbnailURL, "thumbnail image URL")
}

func runBlogsCreate(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs create")
	var in model.BlogInput
	blogInputFlags(fs, &in)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	blog, err := a.Blogs.Create(ctx, in)
	if err != nil {
		return err
	}
	return a.render(*format, blog, func(w io.Writer) {
		fmt.Fprintf(w, "Published blog %d: %s\n", blog.ID, blog.Title)
	})
}

func runBlogsEdit(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs edit")
	title := fs.String("title", "", "new title")
	content := fs.String("content", "", "new body")
	thumbnail := fs.String("thumbnail", "", "new thumbnail image URL")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}

	current, err := a.Blogs.Get(ctx, id)
	if err != nil {
		return err
	}
	in := model.BlogInput{Title: current.Title, Content: current.Content, ThumbnailURL: current.ThumbnailURL}
	if *title != "" {
		in.Title = *title
	}
	if *content != "" {
		in.Content = *content
	}
	if *thumbnail != "" {
		in.ThumbnailURL = *thumbnail
	}

	blog, err := a.Blogs.Update(ctx, id, in)
	if err != nil {
		return err
	}
	return a.render(*format, blog, func(w io.Writer) {
		fmt.Fprintf(w, "Updated blog %d: %s\n", blog.ID, blog.Title)
	})
}

func runBlogsDelete(ctx context.Context, a *App, args []string) error {
	fs, _ := newFlagSet(a, "blogs delete")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}
	if err := a.Blogs.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.Streams.Out, "Deleted blog %d.\n", id)
	return nil
}

func runBlogsLike(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs like")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}

	res, err := a.Blogs.Like(ctx, id)
	if err != nil {
		return err
	}
	return a.render(*format, res, func(w io.Writer) {
		verb := "Unliked"
		if res.Liked {
			verb = "Liked"
		}
		fmt.Fprintf(w, "%s blog %d (%d likes)\n", verb, id, res.LikesCount)
	})
}

func runBlogsSave(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs save")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}

	res, err := a.Blogs.Save(ctx, id)
	if err != nil {
		return err
	}
	return a.render(*format, res, func(w io.Writer) {
		if res.Saved {
			fmt.Fprintf(w, "Saved blog %d\n", id)
		} else {
			fmt.Fprintf(w, "Removed blog %d from saved\n", id)
		}
	})
}

func runBlogsComments(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs comments")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}

	comments, err := a.Blogs.Comments(ctx, id)
	if err != nil {
		return err
	}
	return a.render(*format, comments, func(w io.Writer) { writeComments(w, comments) })
}

func runBlogsComment(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs comment")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}

	c, err := a.Blogs.AddComment(ctx, id, textArg(pos, 1, ""))
	if err != nil {
		return err
	}
	return a.render(*format, c, func(w io.Writer) {
		fmt.Fprintf(w, "Added comment %d\n", c.ID)
	})
}

func runBlogsEditComment(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "blogs edit-comment")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	blogID, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}
	commentID, err := idArg(pos, 1, "comment id")
	if err != nil {
		return err
	}

	c, err := a.Blogs.EditComment(ctx, blogID, commentID, textArg(pos, 2, ""))
	if err != nil {
		return err
	}
	return a.render(*format, c, func(w io.Writer) {
		fmt.Fprintf(w, "Updated comment %d\n", c.ID)
	})
}

func runBlogsUncomment(ctx context.Context, a *App, args []string) error {
	fs, _ := newFlagSet(a, "blogs uncomment")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	blogID, err := idArg(pos, 0, "blog id")
	if err != nil {
		return err
	}
	commentID, err := idArg(pos, 1, "comment id")
	if err != nil {
		return err
	}
	if err := a.Blogs.DeleteComment(ctx, blogID, commentID); err != nil {
		return err
	}
	fmt.Fprintf(a.Streams.Out, "Deleted comment %d.\n", commentID)
	return nil
}

func runBloggersList(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "bloggers list")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	bloggers, err := a.Bloggers.List(ctx)
	if err != nil {
		return err
	}
	return a.render(*format, bloggers, func(w io.Writer) { writeBloggers(w, bloggers) })
}

func runBloggersShow(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "bloggers show")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blogger id")
	if err != nil {
		return err
	}

	b, err := a.Bloggers.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.render(*format, b, func(w io.Writer) {
		fmt.Fprintf(w, "ID\t%d\nUsername\t%s\nEmail\t%s\nBlogs\t%d\n", b.ID, b.Username, b.Email, b.BlogsCount)
	})
}

func runBloggersEdit(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "bloggers edit")
	username := fs.String("username", "", "new display name")
	email := fs.String("email", "", "new email")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blogger id")
	if err != nil {
		return err
	}

	current, err := a.Bloggers.Get(ctx, id)
	if err != nil {
		return err
	}
	in := model.BloggerInput{Username: current.Username, Email: current.Email}
	if *username != "" {
		in.Username = *username
	}
	if *email != "" {
		in.Email = *email
	}

	b, err := a.Bloggers.Update(ctx, id, in)
	if err != nil {
		return err
	}
	return a.render(*format, b, func(w io.Writer) {
		fmt.Fprintf(w, "Updated %s <%s>\n", b.Username, b.Email)
	})
}

type activityView struct {
	Liked     []model.Blog `json:"liked"`
	Saved     []model.Blog `json:"saved"`
	Commented []model.Blog `json:"commented"`
	Failed    []string     `json:"failed,omitempty"`
}

func runBloggersActivity(ctx context.Context, a *App, args []string) error {
	fs, format := newFlagSet(a, "bloggers activity")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, 0, "blogger id")
	if err != nil {
		return err
	}

	act := a.Bloggers.Activity(ctx, id)
	a.warnFailed(act.Errors)
	view := activityView{Liked: act.Liked, Saved: act.Saved, Commented: act.Commented, Failed: failedNames(act.Errors)}
	return a.render(*format, view, func(w io.Writer) {
		fmt.Fprintln(w, "LIKED")
		writeBlogs(w, act.Liked)
		fmt.Fprintln(w, "\nSAVED")
		writeBlogs(w, act.Saved)
		fmt.Fprintln(w, "\nCOMMENTED")
		writeBlogs(w, act.Commented)
	})
}

// viewerID is the signed-in user's id, or zero.
func (a *App) viewerID() int64 {
	if u := a.Session.CurrentUser(); u != nil {
		return u.ID
	}
	return 0
}

func writeBlogs(w io.Writer, blogs []model.Blog) {
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tVIEWS\tLIKES\tPUBLISHED")
	for _, b := range blogs {
		author := "-"
		if b.Blogger != nil {
			author = b.Blogger.Username
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n", b.ID, truncate(b.Title, 48), author, b.ViewCount, b.LikesCount, formatTime(b.PublishedAt))
	}
}

func writeBloggers(w io.Writer, bloggers []model.Blogger) {
	fmt.Fprintln(w, "ID\tUSERNAME\tBLOGS")
	for _, b := range bloggers {
		fmt.Fprintf(w, "%d\t%s\t%d\n", b.ID, b.Username, b.BlogsCount)
	}
}

func writeComments(w io.Writer, comments []model.Comment) {
	fmt.Fprintln(w, "ID\tAUTHOR\tWHEN\tCOMMENT")
	for _, c := range comments {
		author := "-"
		if c.Blogger != nil {
			author = c.Blogger.Username
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, author, formatTime(&c.CreatedAt), truncate(c.Content, 72))
	}
}

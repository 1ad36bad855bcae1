package service

import (
	"context"

	"github.com/greencycle/greencycle/internal/model"
)

// Home page section sizes.
const (
	homeBlogs     = 3
	homeCampaigns = 3
	homeItems     = 8
	homeDonations = 5
)

// HomeFeed is the landing page. Sections that failed to load are empty and
// named in Errors.
type HomeFeed struct {
	Blogs     []model.Blog
	Campaigns []model.Campaign
	Items     []model.Item
	Donations []model.Donation
	Errors    BranchErrors
}

// Home loads the landing page sections concurrently.
func Home(ctx context.Context, blogs *BlogService, campaigns *CampaignService, items *RecyclepediaService, donations *DonationService) *HomeFeed {
	feed := &HomeFeed{}
	feed.Errors = FanOut(ctx,
		Branch{Name: "blogs", Run: func(ctx context.Context) error {
			out, err := blogs.List(ctx, BlogQuery{})
			feed.Blogs = firstN(out, homeBlogs)
			return err
		}},
		Branch{Name: "campaigns", Run: func(ctx context.Context) error {
			out, err := campaigns.List(ctx)
			feed.Campaigns = firstN(out, homeCampaigns)
			return err
		}},
		Branch{Name: "items", Run: func(ctx context.Context) error {
			page, err := items.Items(ctx, ItemQuery{Page: Page{PerPage: homeItems}})
			if err != nil {
				return err
			}
			feed.Items = page.Items
			return nil
		}},
		Branch{Name: "donations", Run: func(ctx context.Context) error {
			out, err := donations.List(ctx)
			feed.Donations = firstN(out, homeDonations)
			return err
		}},
	)
	return feed
}

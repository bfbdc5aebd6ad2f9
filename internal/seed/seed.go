package seed

import (
	"context"
	"fmt"
	"log/slog"

	"sutnist/internal/models"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// Result summarizes a random seeding run.
type Result struct {
	Users    int
	Posts    int
	Approved int
	Likes    int
	Views    int
	Comments int
}

// cleanOrder deletes children before parents.
var cleanOrder = []interface{}{
	&models.Notification{},
	&models.Comment{},
	&models.PostView{},
	&models.Like{},
	&models.Post{},
	&models.Image{},
	&models.User{},
}

// Clean removes every row of the application tables.
func Clean(ctx context.Context, db *gorm.DB) error {
	slog.InfoContext(ctx, "clearing existing data")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range cleanOrder {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clean %T: %w", model, err)
			}
		}
		return nil
	})
}

// Seed fills the database with random users and posts. Approved posts receive likes, views
// and comments from the generated users; decided posts notify their authors.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	slog.InfoContext(ctx, "starting database seeding",
		slog.Int("users", opts.Users),
		slog.Int("posts", opts.Posts),
		slog.Bool("dry_run", opts.DryRun))

	if opts.Clean && !opts.DryRun {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	f := NewFactory(db, opts)
	if !opts.DryRun {
		f.db = db.WithContext(ctx)
	}
	res := &Result{}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)
	if len(users) == 0 {
		return res, nil
	}

	var moderator *models.User
	if !opts.DryRun {
		var admin models.User
		if err := db.WithContext(ctx).Where("is_admin = ?", true).Order("id").First(&admin).Error; err == nil {
			moderator = &admin
		}
	}

	for i := 0; i < opts.Posts; i++ {
		author := users[f.rnd.Intn(len(users))]
		post, err := f.CreatePost(author, moderator)
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		res.Posts++
		if err := f.CreateDecisionNotification(post); err != nil {
			return nil, fmt.Errorf("create notification: %w", err)
		}
		if post.Status != models.PostStatusApproved {
			continue
		}
		res.Approved++

		if err := f.engage(post, users, res); err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "database seeding completed",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments))
	return res, nil
}

// engage adds likes, views and comments from a random subset of users, plus a few guest views.
func (f *Factory) engage(post *models.Post, users []*models.User, res *Result) error {
	for _, idx := range f.rnd.Perm(len(users))[:f.rnd.Intn(len(users)+1)] {
		u := users[idx]
		if err := f.CreateView(post, fmt.Sprintf("u:%d", u.ID)); err != nil {
			return fmt.Errorf("create view: %w", err)
		}
		res.Views++
		if f.rnd.Float64() < 0.6 {
			if err := f.CreateLike(u, post); err != nil {
				return fmt.Errorf("create like: %w", err)
			}
			res.Likes++
		}
		if f.rnd.Float64() < 0.2 {
			if _, err := f.CreateComment(u, post); err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			res.Comments++
		}
	}
	for i := f.rnd.Intn(4); i > 0; i-- {
		if err := f.CreateView(post, "g:"+ksuid.New().String()); err != nil {
			return fmt.Errorf("create guest view: %w", err)
		}
		res.Views++
	}
	return nil
}

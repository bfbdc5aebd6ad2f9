// Package seed provides helpers to create demo data for the application database.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"sutnist/internal/models"
	"sutnist/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

// Options tune random seeding.
type Options struct {
	Users int
	Posts int
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// ApprovedRatio is the share of generated posts that pass moderation; the rest are split
	// between pending and rejected.
	ApprovedRatio float64
	SkipBcrypt    bool
	DryRun        bool
	Clean         bool
	// Seed makes gofakeit output reproducible when non-zero.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.MaxDays <= 0 {
		o.MaxDays = 30
	}
	if o.ApprovedRatio <= 0 || o.ApprovedRatio > 1 {
		o.ApprovedRatio = 0.7
	}
	return o
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	hash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:     db,
		opts:   opts,
		rnd:    rand.New(rand.NewSource(seed)), // #nosec G404: acceptable for seeding
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(hash)
	return f.hash, nil
}

// fakeUsername returns a gofakeit username that passes validation.
func (f *Factory) fakeUsername() string {
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), gofakeit.Number(100, 999))
		if len(name) > validation.MaxUsernameLength {
			name = name[:validation.MaxUsernameLength]
		}
		if validation.ValidateUsername(name) == nil {
			return name
		}
	}
	return fmt.Sprintf("user%d", gofakeit.Number(100000, 999999))
}

// BuildUser constructs a user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	username := f.fakeUsername()
	user := &models.User{
		Username:    username,
		DisplayName: gofakeit.Name(),
		Avatar:      models.DefaultAvatar(username),
		Bio:         gofakeit.Sentence(8),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user with DefaultPassword.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if user.Password == "" {
		hash, err := f.passwordHash()
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.Password = hash
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		slog.Debug("[dry-run] create user", slog.String("username", user.Username))
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (f *Factory) randomStatus() models.PostStatus {
	roll := f.rnd.Float64()
	switch {
	case roll < f.opts.ApprovedRatio:
		return models.PostStatusApproved
	case roll < f.opts.ApprovedRatio+(1-f.opts.ApprovedRatio)/2:
		return models.PostStatusPending
	default:
		return models.PostStatusRejected
	}
}

func (f *Factory) randomCreatedAt() time.Time {
	back := time.Duration(f.rnd.Intn(f.opts.MaxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// BuildPost constructs a post by author with a random server, status and creation time.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	text := gofakeit.Paragraph(1, f.rnd.Intn(4)+1, 10, " ")
	if len([]rune(text)) > validation.MaxPostTextLength {
		text = string([]rune(text)[:validation.MaxPostTextLength])
	}
	post := &models.Post{
		AuthorID:          author.ID,
		AuthorDisplayName: author.DisplayName,
		AuthorAvatar:      author.Avatar,
		Server:            models.ServerTags[f.rnd.Intn(len(models.ServerTags))],
		Text:              text,
		Images:            []string{},
		Status:            f.randomStatus(),
		CreatedAt:         f.randomCreatedAt(),
	}
	if f.rnd.Float64() < 0.3 {
		post.Images = append(post.Images, fmt.Sprintf("https://picsum.photos/seed/%s/800/600", gofakeit.UUID()))
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a post built by BuildPost. Decided posts get moderation metadata from
// moderator, which may be nil.
func (f *Factory) CreatePost(author, moderator *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if post.Status != models.PostStatusPending {
		decidedAt := post.CreatedAt.Add(time.Duration(f.rnd.Intn(120)+1) * time.Minute)
		post.ModeratedAt = &decidedAt
		if moderator != nil {
			post.ModeratedBy = &moderator.ID
		}
		if post.Status == models.PostStatusRejected && post.ModeratorNote == "" {
			post.ModeratorNote = gofakeit.RandomString([]string{
				"Порушення правил", "Реклама", "Дублікат", "Не стосується гри",
			})
		}
	}

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		slog.Debug("[dry-run] create post",
			slog.Uint64("author_id", uint64(post.AuthorID)),
			slog.String("status", string(post.Status)))
		return post, nil
	}
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateLike persists a like from user on post.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error
}

// CreateView persists one view of post by viewerKey.
func (f *Factory) CreateView(post *models.Post, viewerKey string) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.PostView{PostID: post.ID, ViewerKey: viewerKey}).Error
}

// CreateComment persists a comment by user on post.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:            post.ID,
		AuthorID:          user.ID,
		AuthorDisplayName: user.DisplayName,
		Text:              gofakeit.Sentence(f.rnd.Intn(10) + 3),
		CreatedAt:         post.CreatedAt.Add(time.Duration(f.rnd.Intn(48)+1) * time.Hour),
	}
	if now := time.Now(); comment.CreatedAt.After(now) {
		comment.CreatedAt = now
	}
	for _, override := range overrides {
		override(comment)
	}
	if f.opts.DryRun {
		return comment, nil
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateDecisionNotification stores the notification an author receives for a decided post.
func (f *Factory) CreateDecisionNotification(post *models.Post) error {
	if f.opts.DryRun || post.Status == models.PostStatusPending {
		return nil
	}
	n := decisionNotification(post)
	return f.db.Create(n).Error
}

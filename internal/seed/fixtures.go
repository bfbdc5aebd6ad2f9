package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sutnist/internal/models"
	"sutnist/internal/service"
	"sutnist/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/*.yaml
var fixtureFS embed.FS

// DemoFixture is the name of the bundled demo community.
const DemoFixture = "demo"

// Fixture is a hand-written community loaded from YAML.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Posts []FixturePost `yaml:"posts"`
}

type FixtureUser struct {
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
	Password    string `yaml:"password"`
	Admin       bool   `yaml:"admin"`
	Bio         string `yaml:"bio"`
}

type FixturePost struct {
	Author   string           `yaml:"author"`
	Server   string           `yaml:"server"`
	Status   string           `yaml:"status"`
	Note     string           `yaml:"note"`
	Text     string           `yaml:"text"`
	Images   []string         `yaml:"images"`
	Likes    []string         `yaml:"likes"`
	Comments []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
}

// ParseFixture decodes and validates a YAML fixture.
func ParseFixture(raw []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixture reads a fixture from path, or the bundled one when path names it.
func LoadFixture(path string) (*Fixture, error) {
	var (
		raw []byte
		err error
	)
	if path == DemoFixture {
		raw, err = fixtureFS.ReadFile("fixtures/" + DemoFixture + ".yaml")
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

func (fx *Fixture) validate() error {
	known := make(map[string]bool, len(fx.Users))
	for _, u := range fx.Users {
		if err := validation.ValidateUsername(u.Username); err != nil {
			return fmt.Errorf("fixture user %q: %w", u.Username, err)
		}
		if err := validation.ValidatePassword(u.Password); err != nil {
			return fmt.Errorf("fixture user %q: %w", u.Username, err)
		}
		known[models.UsernameKey(u.Username)] = true
	}

	requireUser := func(where, name string) error {
		if !known[models.UsernameKey(name)] {
			return fmt.Errorf("%s: unknown user %q", where, name)
		}
		return nil
	}
	for i, p := range fx.Posts {
		where := fmt.Sprintf("fixture post %d", i+1)
		if err := requireUser(where, p.Author); err != nil {
			return err
		}
		if _, ok := models.ParseServerTag(p.Server); !ok {
			return fmt.Errorf("%s: unknown server %q", where, p.Server)
		}
		if _, err := parseFixtureStatus(p.Status); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if err := validation.ValidatePostText(strings.TrimSpace(p.Text)); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		for _, liker := range p.Likes {
			if err := requireUser(where, liker); err != nil {
				return err
			}
		}
		for _, c := range p.Comments {
			if err := requireUser(where, c.Author); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseFixtureStatus(raw string) (models.PostStatus, error) {
	switch models.PostStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case "", models.PostStatusApproved:
		return models.PostStatusApproved, nil
	case models.PostStatusPending:
		return models.PostStatusPending, nil
	case models.PostStatusRejected:
		return models.PostStatusRejected, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// FixtureResult counts what ApplyFixture wrote.
type FixtureResult struct {
	UsersCreated int
	PostsCreated int
}

// ApplyFixture writes fx in one transaction. Users that already exist are reused as-is, so the
// same fixture can be applied to a database that already holds its accounts.
func ApplyFixture(ctx context.Context, db *gorm.DB, fx *Fixture, bcryptCost int) (*FixtureResult, error) {
	result := &FixtureResult{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(fx.Users))
		var moderator *models.User
		for _, fu := range fx.Users {
			user, created, err := ensureFixtureUser(tx, fu, bcryptCost)
			if err != nil {
				return err
			}
			if created {
				result.UsersCreated++
			}
			users[models.UsernameKey(fu.Username)] = user
			if user.IsAdmin && moderator == nil {
				moderator = user
			}
		}
		lookup := func(name string) *models.User { return users[models.UsernameKey(name)] }

		now := time.Now().UTC()
		for i, fp := range fx.Posts {
			author := lookup(fp.Author)
			server, _ := models.ParseServerTag(fp.Server)
			status, _ := parseFixtureStatus(fp.Status)
			images := fp.Images
			if images == nil {
				images = []string{}
			}

			post := &models.Post{
				AuthorID:          author.ID,
				AuthorDisplayName: author.DisplayName,
				AuthorAvatar:      author.Avatar,
				Server:            server,
				Text:              strings.TrimSpace(fp.Text),
				Images:            images,
				Status:            status,
				// keep file order as feed order, newest last in the file
				CreatedAt: now.Add(-time.Duration(len(fx.Posts)-i) * time.Hour),
			}
			if status != models.PostStatusPending {
				decidedAt := post.CreatedAt.Add(10 * time.Minute)
				post.ModeratedAt = &decidedAt
				if moderator != nil {
					post.ModeratedBy = &moderator.ID
				}
				if status == models.PostStatusRejected {
					post.ModeratorNote = strings.TrimSpace(fp.Note)
					if post.ModeratorNote == "" {
						post.ModeratorNote = service.DefaultRejectionReason
					}
				}
			}
			if err := tx.Create(post).Error; err != nil {
				return fmt.Errorf("create fixture post: %w", err)
			}
			result.PostsCreated++

			if status != models.PostStatusPending {
				if err := tx.Create(decisionNotification(post)).Error; err != nil {
					return err
				}
			}
			for _, liker := range fp.Likes {
				u := lookup(liker)
				if err := tx.Create(&models.Like{UserID: u.ID, PostID: post.ID}).Error; err != nil {
					return err
				}
				if err := tx.Create(&models.PostView{PostID: post.ID, ViewerKey: fmt.Sprintf("u:%d", u.ID)}).Error; err != nil {
					return err
				}
			}
			for j, fc := range fp.Comments {
				u := lookup(fc.Author)
				comment := &models.Comment{
					PostID:            post.ID,
					AuthorID:          u.ID,
					AuthorDisplayName: u.DisplayName,
					Text:              strings.TrimSpace(fc.Text),
					CreatedAt:         post.CreatedAt.Add(time.Duration(j+1) * 15 * time.Minute),
				}
				if err := tx.Create(comment).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ensureFixtureUser(tx *gorm.DB, fu FixtureUser, bcryptCost int) (*models.User, bool, error) {
	var existing models.User
	err := tx.Where("username_key = ?", models.UsernameKey(fu.Username)).First(&existing).Error
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(fu.Password), bcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	displayName := strings.TrimSpace(fu.DisplayName)
	if displayName == "" {
		displayName = fu.Username
	}
	user := &models.User{
		Username:    fu.Username,
		DisplayName: displayName,
		Avatar:      models.DefaultAvatar(fu.Username),
		Bio:         fu.Bio,
		Password:    string(hash),
		IsAdmin:     fu.Admin,
	}
	if err := tx.Create(user).Error; err != nil {
		return nil, false, fmt.Errorf("create fixture user %q: %w", fu.Username, err)
	}
	return user, true, nil
}

func decisionNotification(post *models.Post) *models.Notification {
	n := &models.Notification{
		UserID:  post.AuthorID,
		PostID:  &post.ID,
		Kind:    models.NotificationApproval,
		Title:   service.ApprovalTitle,
		Message: service.ApprovalMessage,
	}
	if post.Status == models.PostStatusRejected {
		n.Kind = models.NotificationRejection
		n.Title = service.RejectionTitle
		n.Message = service.RejectionMessagePrefix + post.ModeratorNote
	}
	return n
}

package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sutnist/internal/cache"
	"sutnist/internal/models"
	"sutnist/internal/observability"
	"sutnist/internal/repository"
	"sutnist/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// Profile change cooldowns.
const (
	DisplayNameCooldown = 7 * 24 * time.Hour
	UsernameCooldown    = 30 * 24 * time.Hour
)

type IdentityService struct {
	store      repository.Store
	sessions   *SessionService
	bcryptCost int
	now        func() time.Time
}

type RegisterInput struct {
	Username    string
	DisplayName string
	Password    string
}

// UpdateProfileInput carries the optional profile fields; nil means "leave as is".
type UpdateProfileInput struct {
	UserID      uint
	Username    *string
	DisplayName *string
	Bio         *string
	Avatar      *string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func NewIdentityService(store repository.Store, sessions *SessionService) *IdentityService {
	return &IdentityService{
		store:      store,
		sessions:   sessions,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ctx, span := observability.StartSpan(ctx, "service", "identity.register")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	username := strings.TrimSpace(in.Username)
	if err = validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err = validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}
	if err = validation.ValidateDisplayName(displayName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:    username,
		DisplayName: displayName,
		Avatar:      models.DefaultAvatar(username),
		Password:    string(hash),
	}
	if err = s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(user.ID)))

	return s.authenticated(user)
}

// Login checks the password against the stored bcrypt hash. Unknown usernames and wrong
// passwords produce the same error.
func (s *IdentityService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.store.Users().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewInvalidCredentialsError()
		}
		return nil, err
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); cmpErr != nil {
		return nil, models.NewInvalidCredentialsError()
	}
	return s.authenticated(user)
}

// Logout revokes the presented session.
func (s *IdentityService) Logout(ctx context.Context, claims *Claims) error {
	return s.sessions.Revoke(ctx, claims)
}

func (s *IdentityService) authenticated(user *models.User) (*AuthResult, error) {
	session, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: session.Token, ExpiresAt: session.ExpiresAt}, nil
}

// GetUser returns the user with derived post and like counters.
func (s *IdentityService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Users().Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Stats = stats
	return user, nil
}

func (s *IdentityService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}

// UpdateProfile applies the changed fields. A new display name or avatar is copied onto every
// post and comment of the user in the same transaction as the user row.
func (s *IdentityService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	ctx, span := observability.StartSpan(ctx, "service", "identity.update_profile")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.store.Users().GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var changes repository.ProfileChanges

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if err = validation.ValidateDisplayName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if name != user.DisplayName {
			if withinCooldown(user.LastDisplayNameChangeAt, now, DisplayNameCooldown) {
				err = models.NewRateLimitedError("Display name can be changed once every 7 days")
				return nil, err
			}
			changes.DisplayName = &name
			changes.LastDisplayNameChangeAt = &now
			cutoff := now.Add(-DisplayNameCooldown)
			changes.DisplayNameCutoff = &cutoff
		}
	}

	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err = validation.ValidateUsername(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if name != user.Username {
			if withinCooldown(user.LastUsernameChangeAt, now, UsernameCooldown) {
				err = models.NewRateLimitedError("Username can be changed once every 30 days")
				return nil, err
			}
			if models.UsernameKey(name) != models.UsernameKey(user.Username) {
				if err = s.ensureUsernameFree(ctx, name, user.ID); err != nil {
					return nil, err
				}
			}
			changes.Username = &name
			changes.LastUsernameChangeAt = &now
			cutoff := now.Add(-UsernameCooldown)
			changes.UsernameCutoff = &cutoff
		}
	}

	if in.Bio != nil {
		bio := plainText(*in.Bio)
		if err = validation.ValidateBio(bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if bio != user.Bio {
			changes.Bio = &bio
		}
	}

	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		if err = validation.ValidateAvatarRef(avatar); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if avatar != user.Avatar {
			changes.Avatar = &avatar
		}
	}

	snapshotChanged := changes.DisplayName != nil || changes.Avatar != nil
	if changes != (repository.ProfileChanges{}) {
		displayName, avatar := user.DisplayName, user.Avatar
		if changes.DisplayName != nil {
			displayName = *changes.DisplayName
		}
		if changes.Avatar != nil {
			avatar = *changes.Avatar
		}

		err = s.store.Transaction(ctx, func(tx repository.Store) error {
			if err := tx.Users().UpdateProfile(ctx, user.ID, changes); err != nil {
				return err
			}
			if !snapshotChanged {
				return nil
			}
			if _, err := tx.Posts().UpdateAuthorSnapshot(ctx, user.ID, displayName, avatar); err != nil {
				return err
			}
			if changes.DisplayName != nil {
				if _, err := tx.Engagement().UpdateCommentAuthorSnapshot(ctx, user.ID, displayName); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		cache.InvalidateUser(ctx, user.ID)
		slog.InfoContext(ctx, "profile updated",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.Bool("snapshots_rewritten", snapshotChanged))
	}

	return s.GetUser(ctx, user.ID)
}

func (s *IdentityService) ensureUsernameFree(ctx context.Context, username string, selfID uint) error {
	other, err := s.store.Users().GetByUsername(ctx, username)
	switch {
	case err == nil && other.ID != selfID:
		return models.NewDuplicateUsernameError(username)
	case err == nil, models.IsCode(err, models.CodeNotFound):
		return nil
	default:
		return err
	}
}

func withinCooldown(last *time.Time, now time.Time, cooldown time.Duration) bool {
	return last != nil && now.Sub(*last) <= cooldown
}

// SetAdmin grants or revokes the admin role.
func (s *IdentityService) SetAdmin(ctx context.Context, userID uint, isAdmin bool) (*models.User, error) {
	if err := s.store.Users().SetAdmin(ctx, userID, isAdmin); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// SetAdminByUsername is SetAdmin addressed by username, used by the admin CLI.
func (s *IdentityService) SetAdminByUsername(ctx context.Context, username string, isAdmin bool) (*models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.SetAdmin(ctx, user.ID, isAdmin)
}

func (s *IdentityService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.store.Users().ListAdmins(ctx)
}

// ProvisionAdmin makes sure an admin account named username exists. A missing account is
// created with password; an existing one is promoted and keeps its password. It reports
// whether the account was created.
func (s *IdentityService) ProvisionAdmin(ctx context.Context, username, password, displayName string) (*models.User, bool, error) {
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, false, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, false, models.NewValidationError(err.Error())
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	var (
		user    *models.User
		created bool
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		existing, err := tx.Users().GetByUsername(ctx, username)
		switch {
		case err == nil:
			user = existing
			if existing.IsAdmin {
				return nil
			}
			user.IsAdmin = true
			return tx.Users().SetAdmin(ctx, existing.ID, true)
		case !models.IsCode(err, models.CodeNotFound):
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return models.NewInternalError(err)
		}
		user = &models.User{
			Username:    username,
			DisplayName: displayName,
			Avatar:      models.DefaultAvatar(username),
			Password:    string(hash),
			IsAdmin:     true,
		}
		created = true
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		return nil, false, err
	}
	cache.InvalidateUser(ctx, user.ID)
	return user, created, nil
}

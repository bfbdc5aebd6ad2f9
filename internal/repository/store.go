package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories so that services can run several of them in one transaction.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	Engagement() EngagementRepository
	Notifications() NotificationRepository
	Images() ImageRepository

	// Transaction runs fn against a Store bound to one database transaction. Returning an
	// error rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository {
	return &userRepository{db: s.db, cached: !s.inTx}
}

func (s *gormStore) Posts() PostRepository {
	return &postRepository{db: s.db, cached: !s.inTx}
}

func (s *gormStore) Engagement() EngagementRepository {
	return &engagementRepository{db: s.db}
}

func (s *gormStore) Notifications() NotificationRepository {
	return &notificationRepository{db: s.db}
}

func (s *gormStore) Images() ImageRepository {
	return &imageRepository{db: s.db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
	return storageError(err)
}

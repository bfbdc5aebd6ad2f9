package database

import "sutnist/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Like{},
		&models.PostView{},
		&models.Comment{},
		&models.Notification{},
		&models.Image{},
	}
}

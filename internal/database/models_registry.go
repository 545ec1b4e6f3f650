package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models, parents first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Comment{},
	}
}

// ManagedTables lists the tables owned by PersistentModels.
func ManagedTables() []string {
	return []string{"users", "blog_posts", "comments"}
}

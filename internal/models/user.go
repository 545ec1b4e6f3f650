// Package models contains data structures for the blog's domain models.
package models

import "time"

// User is a registered account. IsAdmin grants the content-management routes.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:250;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:250;not null" json:"-"`
	Name      string    `gorm:"size:250;not null" json:"name"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Posts     []Post    `gorm:"foreignKey:AuthorID" json:"posts,omitempty"`
	Comments  []Comment `gorm:"foreignKey:AuthorID" json:"comments,omitempty"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}

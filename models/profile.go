package models

import "time"

// UserProfile extends a user with the details shown on their public page. The row is keyed by
// the user and created lazily on first read.
type UserProfile struct {
	UserID      uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Bio         string    `gorm:"type:text" json:"bio"`
	Skills      []string  `gorm:"serializer:json;type:text" json:"skills"`
	LookingFor  string    `gorm:"size:500" json:"looking_for"`
	GithubURL   string    `gorm:"size:512" json:"github_url"`
	LinkedinURL string    `gorm:"size:512" json:"linkedin_url"`
	WebsiteURL  string    `gorm:"size:512" json:"website_url"`
	TwitterURL  string    `gorm:"size:512" json:"twitter_url"`
	IsPublic    bool      `gorm:"not null" json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PortfolioItem is one project a member shows on their profile.
type PortfolioItem struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	Title        string    `gorm:"size:100;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	ProjectURL   string    `gorm:"size:1024" json:"project_url"`
	ImageURL     string    `gorm:"size:1024" json:"image_url"`
	Technologies []string  `gorm:"serializer:json;type:text" json:"technologies"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

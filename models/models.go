package models

// All lists every model managed by migrations, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Post{},
		&Comment{},
		&Attachment{},
		&UploadedFile{},
		&Reaction{},
		&Notification{},
		&Event{},
		&PageView{},
		&UserProfile{},
		&PortfolioItem{},
	}
}

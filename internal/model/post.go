package model

import "time"

type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Author       *UserSummary `json:"author,omitempty"`
	LikeCount    int          `json:"like_count"`
	CommentCount int          `json:"comment_count"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	User *UserSummary `json:"user,omitempty"`
}

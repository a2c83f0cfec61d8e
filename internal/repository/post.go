package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloghub/internal/logger"
	"github.com/bloghub/internal/model"
)

// PostRepository backs the write-side triggers of the fan-out pipeline:
// posts, likes, comments and the follow graph.
type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	defer logger.DeferLogDuration("post.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO posts (id, author_id, title, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.AuthorID, p.Title, p.Content, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postRepo.Create: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	defer logger.DeferLogDuration("post.GetByID", time.Now())()
	p := &model.Post{}
	author := &model.UserSummary{}
	err := r.pool.QueryRow(ctx,
		`SELECT p.id, p.author_id, p.title, p.content, p.created_at,
		        u.id, u.username, u.name, u.avatar_url,
		        (SELECT COUNT(*) FROM post_likes WHERE post_id = p.id),
		        (SELECT COUNT(*) FROM post_comments WHERE post_id = p.id)
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.id = $1`, id,
	).Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.CreatedAt,
		&author.ID, &author.Username, &author.Name, &author.AvatarURL,
		&p.LikeCount, &p.CommentCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postRepo.GetByID: %w", err)
	}
	p.Author = author
	return p, nil
}

func (r *PostRepository) List(ctx context.Context, limit int) ([]model.Post, error) {
	defer logger.DeferLogDuration("post.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.author_id, p.title, p.content, p.created_at,
		        u.id, u.username, u.name, u.avatar_url,
		        (SELECT COUNT(*) FROM post_likes WHERE post_id = p.id),
		        (SELECT COUNT(*) FROM post_comments WHERE post_id = p.id)
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 ORDER BY p.created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postRepo.List query: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, limit)
	for rows.Next() {
		var p model.Post
		author := &model.UserSummary{}
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.CreatedAt,
			&author.ID, &author.Username, &author.Name, &author.AvatarURL,
			&p.LikeCount, &p.CommentCount); err != nil {
			return nil, fmt.Errorf("postRepo.List scan: %w", err)
		}
		p.Author = author
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postRepo.List rows: %w", err)
	}
	return posts, nil
}

// ToggleLike adds the user's like if absent, removes it otherwise. Returns
// liked=true when the call resulted in the post being liked by the user.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID string) (liked bool, err error) {
	defer logger.DeferLogDuration("post.ToggleLike", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO post_likes (post_id, user_id, created_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		postID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("postRepo.ToggleLike insert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	); err != nil {
		return false, fmt.Errorf("postRepo.ToggleLike delete: %w", err)
	}
	return false, nil
}

func (r *PostRepository) AddComment(ctx context.Context, c *model.Comment) error {
	defer logger.DeferLogDuration("post.AddComment", time.Now())()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO post_comments (id, post_id, user_id, text, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.UserID, c.Text, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postRepo.AddComment: %w", err)
	}
	return nil
}

// Follow records follower -> followee. Returns created=false when the edge
// already exists.
func (r *PostRepository) Follow(ctx context.Context, followerID, followeeID string) (created bool, err error) {
	defer logger.DeferLogDuration("post.Follow", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO follows (follower_id, followee_id, created_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		followerID, followeeID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("postRepo.Follow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	defer logger.DeferLogDuration("post.Unfollow", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("postRepo.Unfollow: %w", err)
	}
	return nil
}

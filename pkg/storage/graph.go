package storage

import (
	"context"
	"time"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Follower is one incoming follow edge of a user.
type Follower struct {
	UserID int64
	Since  time.Time
}

// PostgresGraph reads users, posts, follow edges and categories from the
// relational content store. It never writes.
//
// Expected tables:
//
//	users(id bigint, username text, is_public bool)
//	posts(id bigint, posted_by bigint, repost_of bigint null)
//	posts_tagged_users(post_id bigint, user_id bigint)
//	follows(follower bigint, subject bigint, is_close_friend bool, created_at timestamptz)
//	categories(id bigint, name text)
type PostgresGraph struct {
	pool *pgxpool.Pool
}

func NewPostgresGraph(pool *pgxpool.Pool) *PostgresGraph {
	return &PostgresGraph{pool: pool}
}

const findPostQuery = `
SELECT p.id, p.posted_by, p.repost_of,
       COALESCE(array_agg(t.user_id ORDER BY t.user_id) FILTER (WHERE t.user_id IS NOT NULL), '{}')
FROM posts p
LEFT JOIN posts_tagged_users t ON t.post_id = p.id
WHERE p.id = $1
GROUP BY p.id, p.posted_by, p.repost_of`

func (g *PostgresGraph) FindPost(ctx context.Context, postID int64) (model.Post, bool, error) {
	var post model.Post
	err := g.pool.QueryRow(ctx, findPostQuery, postID).Scan(&post.PostID, &post.PostedBy, &post.RepostOf, &post.TaggedUsers)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, false, nil
	}
	if err != nil {
		return model.Post{}, false, errs.Upstream(err, "reading post")
	}
	return post, true, nil
}

func (g *PostgresGraph) ListFollowers(ctx context.Context, userID int64) ([]Follower, error) {
	rows, err := g.pool.Query(ctx, `SELECT follower, created_at FROM follows WHERE subject = $1`, userID)
	if err != nil {
		return nil, errs.Upstream(err, "reading followers")
	}
	followers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Follower, error) {
		var f Follower
		err := row.Scan(&f.UserID, &f.Since)
		return f, err
	})
	if err != nil {
		return nil, errs.Upstream(err, "reading followers")
	}
	return followers, nil
}

func (g *PostgresGraph) FindFollowers(ctx context.Context, userID int64) ([]int64, error) {
	followers, err := g.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(followers))
	for _, f := range followers {
		ids = append(ids, f.UserID)
	}
	return ids, nil
}

func (g *PostgresGraph) FindUser(ctx context.Context, userID int64) (model.User, bool, error) {
	return g.findUser(ctx, `SELECT id, username, is_public FROM users WHERE id = $1`, userID)
}

// FindUserByUsername matches usernames case-insensitively.
func (g *PostgresGraph) FindUserByUsername(ctx context.Context, username string) (model.User, bool, error) {
	return g.findUser(ctx, `SELECT id, username, is_public FROM users WHERE lower(username) = lower($1) ORDER BY id LIMIT 1`, username)
}

func (g *PostgresGraph) findUser(ctx context.Context, query string, arg any) (model.User, bool, error) {
	var user model.User
	err := g.pool.QueryRow(ctx, query, arg).Scan(&user.UserID, &user.Username, &user.IsPublic)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, errs.Upstream(err, "reading user")
	}
	return user, true, nil
}

func (g *PostgresGraph) FindFollowEdge(ctx context.Context, follower int64, subject int64) (model.FollowEdge, bool, error) {
	edge := model.FollowEdge{Follower: follower, Subject: subject}
	err := g.pool.QueryRow(ctx,
		`SELECT is_close_friend FROM follows WHERE follower = $1 AND subject = $2`,
		follower, subject,
	).Scan(&edge.IsCloseFriend)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FollowEdge{}, false, nil
	}
	if err != nil {
		return model.FollowEdge{}, false, errs.Upstream(err, "reading follow edge")
	}
	return edge, true, nil
}

func (g *PostgresGraph) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := g.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, errs.Upstream(err, "reading categories")
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Category, error) {
		var c model.Category
		err := row.Scan(&c.CategoryID, &c.Name)
		return c, err
	})
	if err != nil {
		return nil, errs.Upstream(err, "reading categories")
	}
	return categories, nil
}

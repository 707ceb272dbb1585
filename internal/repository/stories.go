package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/storymap/backend/internal/domain"
)

const storyColumns = `
	s.id, s.author_id, s.title, s.content, s.longitude, s.latitude, s.address,
	s.images, s.tags, s.created_at, s.updated_at,
	COALESCE((SELECT array_agg(l.user_id ORDER BY l.created_at) FROM story_likes l WHERE l.story_id = s.id), '{}') AS likes
`

// haversineSQL computes the great-circle distance in meters between a story's
// location and a query point. %[1]s is the latitude placeholder, %[2]s the
// longitude placeholder.
const haversineSQL = `2 * 6371000 * asin(sqrt(
	pow(sin(radians(s.latitude - %[1]s) / 2), 2) +
	cos(radians(%[1]s)) * cos(radians(s.latitude)) *
	pow(sin(radians(s.longitude - %[2]s) / 2), 2)))`

// CreateStory persists a new story
func (r *PostgresRepository) CreateStory(ctx context.Context, params domain.CreateStoryParams) (*domain.Story, error) {
	query := `
		INSERT INTO stories (author_id, title, content, longitude, latitude, address, images, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	images := params.Images
	if images == nil {
		images = []string{}
	}
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	story := &domain.Story{
		Title:    params.Title,
		Content:  params.Content,
		Location: params.Location,
		Images:   images,
		AuthorID: params.AuthorID,
		Likes:    []uuid.UUID{},
		Comments: []domain.Comment{},
		Tags:     tags,
	}

	err := r.db.QueryRow(ctx, query,
		params.AuthorID,
		params.Title,
		params.Content,
		params.Location.Longitude(),
		params.Location.Latitude(),
		params.Location.Address,
		images,
		tags,
	).Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return story, nil
}

// GetStoryByID retrieves a story with its likes and comments
func (r *PostgresRepository) GetStoryByID(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories s WHERE s.id = $1`

	story, err := scanStory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	comments, err := r.loadComments(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	story.Comments = comments[id]
	if story.Comments == nil {
		story.Comments = []domain.Comment{}
	}
	return story, nil
}

// ListStories returns stories matching the filter. With an active proximity
// filter stories come back ordered by distance; otherwise newest first. The
// geo and search filter groups are AND-ed.
func (r *PostgresRepository) ListStories(ctx context.Context, filter domain.StoryFilter) ([]*domain.Story, error) {
	var (
		conds   []string
		args    []any
		orderBy = "s.created_at DESC"
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.HasGeo() {
		distance := fmt.Sprintf(haversineSQL, arg(*filter.Lat), arg(*filter.Lng))
		radiusMeters := arg(*filter.RadiusKm * 1000)
		conds = append(conds, fmt.Sprintf("%s <= %s", distance, radiusMeters))
		orderBy = distance + " ASC"
	}

	if filter.Search != nil && *filter.Search != "" {
		pattern := arg("%" + *filter.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(s.title ILIKE %[1]s OR s.content ILIKE %[1]s OR EXISTS (SELECT 1 FROM unnest(s.tags) AS tag WHERE tag ILIKE %[1]s))",
			pattern,
		))
	}

	query := `SELECT ` + storyColumns + ` FROM stories s`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderBy

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []*domain.Story
	var ids []uuid.UUID
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
		ids = append(ids, story.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	comments, err := r.loadComments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, story := range stories {
		story.Comments = comments[story.ID]
		if story.Comments == nil {
			story.Comments = []domain.Comment{}
		}
	}
	return stories, nil
}

// UpdateStory applies a partial update and bumps updated_at
func (r *PostgresRepository) UpdateStory(ctx context.Context, id uuid.UUID, params domain.UpdateStoryParams) (*domain.Story, error) {
	sets := []string{"updated_at = now()"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Title != nil {
		sets = append(sets, "title = "+arg(*params.Title))
	}
	if params.Content != nil {
		sets = append(sets, "content = "+arg(*params.Content))
	}
	if params.Location != nil {
		sets = append(sets, "longitude = "+arg(params.Location.Longitude()))
		sets = append(sets, "latitude = "+arg(params.Location.Latitude()))
		sets = append(sets, "address = "+arg(params.Location.Address))
	}
	if params.Images != nil {
		sets = append(sets, "images = "+arg(*params.Images))
	}
	if params.Tags != nil {
		sets = append(sets, "tags = "+arg(*params.Tags))
	}

	query := fmt.Sprintf("UPDATE stories SET %s WHERE id = %s", strings.Join(sets, ", "), arg(id))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrStoryNotFound
	}

	return r.GetStoryByID(ctx, id)
}

// DeleteStory removes a story; likes and comments cascade
func (r *PostgresRepository) DeleteStory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

// ToggleStoryLike likes or unlikes a story for a user. The unique primary key
// on (story_id, user_id) guarantees the likes set never holds duplicates; a
// single request either inserts or deletes exactly one row.
func (r *PostgresRepository) ToggleStoryLike(ctx context.Context, storyID, userID uuid.UUID) (*domain.Story, error) {
	if err := r.touchStory(ctx, storyID); err != nil {
		return nil, err
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO story_likes (story_id, user_id) VALUES ($1, $2)
		ON CONFLICT (story_id, user_id) DO NOTHING
	`, storyID, userID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		_, err = r.db.Exec(ctx, `DELETE FROM story_likes WHERE story_id = $1 AND user_id = $2`, storyID, userID)
		if err != nil {
			return nil, err
		}
	}

	return r.GetStoryByID(ctx, storyID)
}

// AddStoryComment appends a comment to a story
func (r *PostgresRepository) AddStoryComment(ctx context.Context, storyID, userID uuid.UUID, text string) (*domain.Story, error) {
	if err := r.touchStory(ctx, storyID); err != nil {
		return nil, err
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO story_comments (story_id, user_id, text) VALUES ($1, $2, $3)
	`, storyID, userID, text)
	if err != nil {
		return nil, err
	}

	return r.GetStoryByID(ctx, storyID)
}

// touchStory bumps updated_at and doubles as an existence check before
// mutating a story's nested collections
func (r *PostgresRepository) touchStory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE stories SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

// loadComments fetches comments for a set of stories in creation order
func (r *PostgresRepository) loadComments(ctx context.Context, storyIDs []uuid.UUID) (map[uuid.UUID][]domain.Comment, error) {
	result := make(map[uuid.UUID][]domain.Comment, len(storyIDs))
	if len(storyIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT c.story_id, c.id, c.user_id, c.text, c.created_at
		FROM story_comments c
		WHERE c.story_id = ANY($1)
		ORDER BY c.created_at, c.id
	`, storyIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var storyID uuid.UUID
		var comment domain.Comment
		if err := rows.Scan(&storyID, &comment.ID, &comment.UserID, &comment.Text, &comment.CreatedAt); err != nil {
			return nil, err
		}
		result[storyID] = append(result[storyID], comment)
	}
	return result, rows.Err()
}

func scanStory(row pgx.Row) (*domain.Story, error) {
	var story domain.Story
	var lng, lat float64
	var address string
	err := row.Scan(
		&story.ID,
		&story.AuthorID,
		&story.Title,
		&story.Content,
		&lng,
		&lat,
		&address,
		&story.Images,
		&story.Tags,
		&story.CreatedAt,
		&story.UpdatedAt,
		&story.Likes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStoryNotFound
		}
		return nil, err
	}

	story.Location = domain.GeoPoint{
		Type:        "Point",
		Coordinates: [2]float64{lng, lat},
		Address:     address,
	}
	if story.Images == nil {
		story.Images = []string{}
	}
	if story.Tags == nil {
		story.Tags = []string{}
	}
	if story.Likes == nil {
		story.Likes = []uuid.UUID{}
	}
	return &story, nil
}

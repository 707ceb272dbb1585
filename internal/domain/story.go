package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStoryNotFound  = errors.New("story not found")
	ErrNotStoryAuthor = errors.New("not the author of this story")
)

// GeoPoint is a GeoJSON-style point with a human-readable address.
// Coordinates are always [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Address     string     `json:"address"`
}

func (p GeoPoint) Longitude() float64 { return p.Coordinates[0] }
func (p GeoPoint) Latitude() float64  { return p.Coordinates[1] }

// Comment is a single entry in a story's append-only comment list.
type Comment struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
	User      *UserResponse `json:"user,omitempty"` // public projection, resolved by the service
}

// Story is the geotagged post aggregate.
type Story struct {
	ID        uuid.UUID     `json:"id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Location  GeoPoint      `json:"location"`
	Images    []string      `json:"images"`
	AuthorID  uuid.UUID     `json:"author_id"`
	Author    *UserResponse `json:"author,omitempty"`
	Likes     []uuid.UUID   `json:"likes"`
	Comments  []Comment     `json:"comments"`
	Tags      []string      `json:"tags"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CreateStoryParams holds parameters for story creation. AuthorID is always
// the authenticated caller, never client-supplied.
type CreateStoryParams struct {
	AuthorID uuid.UUID
	Title    string
	Content  string
	Location GeoPoint
	Images   []string
	Tags     []string
}

// UpdateStoryParams carries a partial update; nil fields are left untouched.
type UpdateStoryParams struct {
	Title    *string
	Content  *string
	Location *GeoPoint
	Images   *[]string
	Tags     *[]string
}

// StoryFilter narrows a story listing. The geo fields act as a group: the
// proximity filter applies only when all three are set.
type StoryFilter struct {
	Lat      *float64
	Lng      *float64
	RadiusKm *float64
	Search   *string
}

// HasGeo reports whether the proximity filter is active.
func (f StoryFilter) HasGeo() bool {
	return f.Lat != nil && f.Lng != nil && f.RadiusKm != nil
}

// StoryRepository defines the interface for story data access.
type StoryRepository interface {
	CreateStory(ctx context.Context, params CreateStoryParams) (*Story, error)
	GetStoryByID(ctx context.Context, id uuid.UUID) (*Story, error)
	ListStories(ctx context.Context, filter StoryFilter) ([]*Story, error)
	UpdateStory(ctx context.Context, id uuid.UUID, params UpdateStoryParams) (*Story, error)
	DeleteStory(ctx context.Context, id uuid.UUID) error
	ToggleStoryLike(ctx context.Context, storyID, userID uuid.UUID) (*Story, error)
	AddStoryComment(ctx context.Context, storyID, userID uuid.UUID, text string) (*Story, error)
}

// UserDirectory resolves user ids to public projections for responses.
type UserDirectory interface {
	GetUsersPublic(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*UserResponse, error)
}

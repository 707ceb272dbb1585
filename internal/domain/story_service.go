package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/storymap/backend/pkg/validator"
)

// StoryService handles story business logic: validation, authorization and
// resolving user references to public projections.
type StoryService struct {
	repo  StoryRepository
	users UserDirectory
}

// NewStoryService creates a new story service
func NewStoryService(repo StoryRepository, users UserDirectory) *StoryService {
	return &StoryService{
		repo:  repo,
		users: users,
	}
}

// Create validates and persists a new story. The author is always the caller.
func (s *StoryService) Create(ctx context.Context, callerID uuid.UUID, params CreateStoryParams) (*Story, error) {
	params.AuthorID = callerID
	params.Title = strings.TrimSpace(params.Title)
	params.Tags = trimTags(params.Tags)

	var errs validator.ValidationErrors
	validateTitle(&errs, params.Title)
	validateContent(&errs, params.Content)
	validateLocation(&errs, params.Location)
	validateImages(&errs, params.Images)
	if errs.HasErrors() {
		return nil, errs
	}

	story, err := s.repo.CreateStory(ctx, params)
	if err != nil {
		return nil, err
	}

	if err := s.resolveUsers(ctx, []*Story{story}, false); err != nil {
		return nil, err
	}
	return story, nil
}

// List returns stories matching the filter with authors resolved. Without a
// proximity filter stories come back newest first; with one they come back in
// distance order.
func (s *StoryService) List(ctx context.Context, filter StoryFilter) ([]*Story, error) {
	stories, err := s.repo.ListStories(ctx, filter)
	if err != nil {
		return nil, err
	}

	if err := s.resolveUsers(ctx, stories, false); err != nil {
		return nil, err
	}
	return stories, nil
}

// Get returns one story with author and comment users resolved.
func (s *StoryService) Get(ctx context.Context, id uuid.UUID) (*Story, error) {
	story, err := s.repo.GetStoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.resolveUsers(ctx, []*Story{story}, true); err != nil {
		return nil, err
	}
	return story, nil
}

// Update applies a partial update to the caller's own story. Validation is
// all-or-nothing: no field is written unless every supplied field passes.
func (s *StoryService) Update(ctx context.Context, callerID, id uuid.UUID, params UpdateStoryParams) (*Story, error) {
	story, err := s.repo.GetStoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if story.AuthorID != callerID {
		return nil, ErrNotStoryAuthor
	}

	var errs validator.ValidationErrors
	if params.Title != nil {
		trimmed := strings.TrimSpace(*params.Title)
		params.Title = &trimmed
		validateTitle(&errs, trimmed)
	}
	if params.Content != nil {
		validateContent(&errs, *params.Content)
	}
	if params.Location != nil {
		validateLocation(&errs, *params.Location)
	}
	if params.Images != nil {
		validateImages(&errs, *params.Images)
	}
	if params.Tags != nil {
		trimmed := trimTags(*params.Tags)
		params.Tags = &trimmed
	}
	if errs.HasErrors() {
		return nil, errs
	}

	updated, err := s.repo.UpdateStory(ctx, id, params)
	if err != nil {
		return nil, err
	}

	if err := s.resolveUsers(ctx, []*Story{updated}, false); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the caller's own story.
func (s *StoryService) Delete(ctx context.Context, callerID, id uuid.UUID) error {
	story, err := s.repo.GetStoryByID(ctx, id)
	if err != nil {
		return err
	}
	if story.AuthorID != callerID {
		return ErrNotStoryAuthor
	}
	return s.repo.DeleteStory(ctx, id)
}

// ToggleLike likes the story if the caller has not liked it yet, otherwise
// removes the like. Two applications by the same caller cancel out.
func (s *StoryService) ToggleLike(ctx context.Context, callerID, id uuid.UUID) (*Story, error) {
	story, err := s.repo.ToggleStoryLike(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	if err := s.resolveUsers(ctx, []*Story{story}, false); err != nil {
		return nil, err
	}
	return story, nil
}

// AddComment appends a comment by the caller to the story.
func (s *StoryService) AddComment(ctx context.Context, callerID, id uuid.UUID, text string) (*Story, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		var errs validator.ValidationErrors
		errs.Add("text", "comment text is required")
		return nil, errs
	}

	story, err := s.repo.AddStoryComment(ctx, id, callerID, text)
	if err != nil {
		return nil, err
	}

	if err := s.resolveUsers(ctx, []*Story{story}, true); err != nil {
		return nil, err
	}
	return story, nil
}

// resolveUsers performs the read-side join from user ids to public
// projections, for story authors and optionally comment users.
func (s *StoryService) resolveUsers(ctx context.Context, stories []*Story, withComments bool) error {
	if len(stories) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	collect := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	for _, story := range stories {
		collect(story.AuthorID)
		if withComments {
			for _, c := range story.Comments {
				collect(c.UserID)
			}
		}
	}

	users, err := s.users.GetUsersPublic(ctx, ids)
	if err != nil {
		return err
	}

	for _, story := range stories {
		story.Author = users[story.AuthorID]
		if withComments {
			for i := range story.Comments {
				story.Comments[i].User = users[story.Comments[i].UserID]
			}
		}
	}
	return nil
}

func validateTitle(errs *validator.ValidationErrors, title string) {
	if len(title) < validator.MinTitleLength {
		errs.Add("title", "must be at least 3 characters")
	}
}

func validateContent(errs *validator.ValidationErrors, content string) {
	if len(content) < validator.MinContentLength {
		errs.Add("content", "must be at least 10 characters")
	}
}

func validateLocation(errs *validator.ValidationErrors, loc GeoPoint) {
	if loc.Type != "Point" {
		errs.Add("location.type", "must be \"Point\"")
	}
	if !validator.ValidateLongitude(loc.Longitude()) {
		errs.Add("location.coordinates", "longitude must be between -180 and 180")
	}
	if !validator.ValidateLatitude(loc.Latitude()) {
		errs.Add("location.coordinates", "latitude must be between -90 and 90")
	}
	if strings.TrimSpace(loc.Address) == "" {
		errs.Add("location.address", "address is required")
	}
}

func validateImages(errs *validator.ValidationErrors, images []string) {
	for _, url := range images {
		if !validator.ValidateImageURL(url) {
			errs.Add("images", "invalid image URL: "+url)
		}
	}
}

func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/storymap/backend/internal/domain"
	"github.com/storymap/backend/internal/middleware"
	"github.com/storymap/backend/pkg/response"
	"github.com/storymap/backend/pkg/validator"
	"go.uber.org/zap"
)

// allowedUpdateFields is the whitelist of story fields a PATCH may touch.
// Any other key rejects the whole update.
var allowedUpdateFields = map[string]bool{
	"title":    true,
	"content":  true,
	"location": true,
	"images":   true,
	"tags":     true,
}

// StoryHandler handles story endpoints
type StoryHandler struct {
	storyService *domain.StoryService
	logger       *zap.Logger
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(storyService *domain.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		storyService: storyService,
		logger:       logger,
	}
}

// CreateStoryRequest represents the story creation request body
type CreateStoryRequest struct {
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	Location domain.GeoPoint `json:"location"`
	Images   []string        `json:"images"`
	Tags     []string        `json:"tags"`
}

// CommentRequest represents the comment creation request body
type CommentRequest struct {
	Text string `json:"text"`
}

// Create handles creating a new story
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	story, err := h.storyService.Create(r.Context(), callerID, domain.CreateStoryParams{
		Title:    req.Title,
		Content:  req.Content,
		Location: req.Location,
		Images:   req.Images,
		Tags:     req.Tags,
	})
	if err != nil {
		h.writeStoryError(w, err, "create story failed")
		return
	}

	response.Created(w, story)
}

// List handles fetching stories with optional geo and text filters
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.StoryFilter

	lat, latOK, err := parseFloatParam(q.Get("lat"))
	if err != nil {
		response.BadRequest(w, "invalid lat")
		return
	}
	lng, lngOK, err := parseFloatParam(q.Get("lng"))
	if err != nil {
		response.BadRequest(w, "invalid lng")
		return
	}
	radius, radiusOK, err := parseFloatParam(q.Get("radius"))
	if err != nil {
		response.BadRequest(w, "invalid radius")
		return
	}

	// The proximity filter needs the full triple, matching the behavior of
	// ignoring partial geo params
	if latOK && lngOK && radiusOK {
		filter.Lat = &lat
		filter.Lng = &lng
		filter.RadiusKm = &radius
	}

	if search := q.Get("search"); search != "" {
		filter.Search = &search
	}

	stories, err := h.storyService.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stories failed", zap.Error(err))
		response.InternalError(w, "failed to list stories")
		return
	}

	if stories == nil {
		stories = []*domain.Story{}
	}
	response.OK(w, stories)
}

// Get handles fetching a single story
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.storyID(w, r)
	if !ok {
		return
	}

	story, err := h.storyService.Get(r.Context(), id)
	if err != nil {
		h.writeStoryError(w, err, "get story failed")
		return
	}

	response.OK(w, story)
}

// Update handles a partial update of the caller's own story
func (h *StoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}
	id, ok := h.storyID(w, r)
	if !ok {
		return
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	for key := range fields {
		if !allowedUpdateFields[key] {
			response.BadRequest(w, "invalid update field: "+key)
			return
		}
	}

	var params domain.UpdateStoryParams
	if err := assignUpdateField(fields, "title", &params.Title); err != nil {
		response.BadRequest(w, "invalid title")
		return
	}
	if err := assignUpdateField(fields, "content", &params.Content); err != nil {
		response.BadRequest(w, "invalid content")
		return
	}
	if err := assignUpdateField(fields, "location", &params.Location); err != nil {
		response.BadRequest(w, "invalid location")
		return
	}
	if err := assignUpdateField(fields, "images", &params.Images); err != nil {
		response.BadRequest(w, "invalid images")
		return
	}
	if err := assignUpdateField(fields, "tags", &params.Tags); err != nil {
		response.BadRequest(w, "invalid tags")
		return
	}

	story, err := h.storyService.Update(r.Context(), callerID, id, params)
	if err != nil {
		h.writeStoryError(w, err, "update story failed")
		return
	}

	response.OK(w, story)
}

// Delete handles deleting the caller's own story
func (h *StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}
	id, ok := h.storyID(w, r)
	if !ok {
		return
	}

	if err := h.storyService.Delete(r.Context(), callerID, id); err != nil {
		h.writeStoryError(w, err, "delete story failed")
		return
	}

	response.OK(w, map[string]string{"message": "story deleted"})
}

// ToggleLike handles liking/unliking a story
func (h *StoryHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}
	id, ok := h.storyID(w, r)
	if !ok {
		return
	}

	story, err := h.storyService.ToggleLike(r.Context(), callerID, id)
	if err != nil {
		h.writeStoryError(w, err, "toggle like failed")
		return
	}

	response.OK(w, story)
}

// AddComment handles appending a comment to a story
func (h *StoryHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}
	id, ok := h.storyID(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	story, err := h.storyService.AddComment(r.Context(), callerID, id, req.Text)
	if err != nil {
		h.writeStoryError(w, err, "add comment failed")
		return
	}

	response.Created(w, story)
}

// storyID parses the {id} route parameter
func (h *StoryHandler) storyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid story id")
		return uuid.Nil, false
	}
	return id, true
}

// writeStoryError maps service errors to HTTP responses
func (h *StoryHandler) writeStoryError(w http.ResponseWriter, err error, logMsg string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		response.BadRequest(w, verrs.Error())
	case errors.Is(err, domain.ErrStoryNotFound):
		response.NotFound(w, "story not found")
	case errors.Is(err, domain.ErrNotStoryAuthor):
		response.Forbidden(w, "not authorized to modify this story")
	default:
		h.logger.Error(logMsg, zap.Error(err))
		response.InternalError(w, logMsg)
	}
}

func parseFloatParam(value string) (float64, bool, error) {
	if value == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

func assignUpdateField[T any](fields map[string]json.RawMessage, key string, dst **T) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return err
	}
	*dst = &value
	return nil
}

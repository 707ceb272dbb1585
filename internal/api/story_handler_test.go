package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storymap/backend/internal/auth"
	"github.com/storymap/backend/internal/domain"
	"github.com/storymap/backend/pkg/response"
)

// memStoryRepo is an in-memory StoryRepository for endpoint tests
type memStoryRepo struct {
	mu         sync.Mutex
	stories    map[uuid.UUID]*domain.Story
	lastFilter domain.StoryFilter
}

func newMemStoryRepo() *memStoryRepo {
	return &memStoryRepo{stories: make(map[uuid.UUID]*domain.Story)}
}

func cloneStory(s *domain.Story) *domain.Story {
	out := *s
	out.Images = append([]string(nil), s.Images...)
	out.Tags = append([]string(nil), s.Tags...)
	out.Likes = append([]uuid.UUID(nil), s.Likes...)
	out.Comments = append([]domain.Comment(nil), s.Comments...)
	return &out
}

func (m *memStoryRepo) CreateStory(_ context.Context, params domain.CreateStoryParams) (*domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	story := &domain.Story{
		ID:        uuid.New(),
		Title:     params.Title,
		Content:   params.Content,
		Location:  params.Location,
		Images:    append([]string{}, params.Images...),
		AuthorID:  params.AuthorID,
		Likes:     []uuid.UUID{},
		Comments:  []domain.Comment{},
		Tags:      append([]string{}, params.Tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.stories[story.ID] = story
	return cloneStory(story), nil
}

func (m *memStoryRepo) GetStoryByID(_ context.Context, id uuid.UUID) (*domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	story, ok := m.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	return cloneStory(story), nil
}

func (m *memStoryRepo) ListStories(_ context.Context, filter domain.StoryFilter) ([]*domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []*domain.Story
	for _, story := range m.stories {
		out = append(out, cloneStory(story))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStoryRepo) UpdateStory(_ context.Context, id uuid.UUID, params domain.UpdateStoryParams) (*domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	story, ok := m.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	if params.Title != nil {
		story.Title = *params.Title
	}
	if params.Content != nil {
		story.Content = *params.Content
	}
	if params.Location != nil {
		story.Location = *params.Location
	}
	if params.Images != nil {
		story.Images = append([]string{}, *params.Images...)
	}
	if params.Tags != nil {
		story.Tags = append([]string{}, *params.Tags...)
	}
	story.UpdatedAt = time.Now()
	return cloneStory(story), nil
}

func (m *memStoryRepo) DeleteStory(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stories[id]; !ok {
		return domain.ErrStoryNotFound
	}
	delete(m.stories, id)
	return nil
}

func (m *memStoryRepo) ToggleStoryLike(_ context.Context, storyID, userID uuid.UUID) (*domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	story, ok := m.stories[storyID]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	for i, id := range story.Likes {
		if id == userID {
			story.Likes = append(story.Likes[:i], story.Likes[i+1:]...)
			return cloneStory(story), nil
		}
	}
	story.Likes = append(story.Likes, userID)
	return cloneStory(story), nil
}

func (m *memStoryRepo) AddStoryComment(_ context.Context, storyID, userID uuid.UUID, text string) (*domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	story, ok := m.stories[storyID]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	story.Comments = append(story.Comments, domain.Comment{
		ID:        uuid.New(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	})
	return cloneStory(story), nil
}

// memUsers backs both the auth repository and the user directory
type memUsers struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*domain.User
	hashes map[uuid.UUID]string
}

func newMemUsers() *memUsers {
	return &memUsers{
		byID:   make(map[uuid.UUID]*domain.User),
		hashes: make(map[uuid.UUID]string),
	}
}

func (m *memUsers) add(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.byID[id] = &domain.User{
		ID:        id,
		Email:     name + "@example.com",
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return id
}

func (m *memUsers) CreateUser(_ context.Context, params domain.CreateUserParams) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	user := &domain.User{
		ID:        id,
		Email:     params.Email,
		Name:      params.Name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.byID[id] = user
	m.hashes[id] = params.PasswordHash
	return user, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (m *memUsers) UserExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byID {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) VerifyUserPassword(_ context.Context, email, password string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, user := range m.byID {
		if user.Email == email {
			if err := auth.VerifyPassword(password, m.hashes[id]); err != nil {
				return nil, domain.ErrInvalidCredentials
			}
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) GetUsersPublic(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.UserResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]*domain.UserResponse)
	for _, id := range ids {
		if user, ok := m.byID[id]; ok {
			out[id] = user.ToResponse()
		}
	}
	return out, nil
}

type testEnv struct {
	router http.Handler
	repo   *memStoryRepo
	users  *memUsers
	jwt    *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	users := newMemUsers()
	repo := newMemStoryRepo()

	storyService := domain.NewStoryService(repo, users)
	authService := domain.NewAuthService(users, jwtManager)

	router := NewRouter(
		NewAuthHandler(authService, logger),
		NewStoryHandler(storyService, logger),
		NewHealthHandler(),
		jwtManager,
		logger,
	).Setup()

	return &testEnv{router: router, repo: repo, users: users, jwt: jwtManager}
}

func (e *testEnv) newUser(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	id := e.users.add(name)
	token, err := e.jwt.GenerateAccessToken(id, name+"@example.com")
	require.NoError(t, err)
	return id, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

func decodeStory(t *testing.T, rec *httptest.ResponseRecorder) domain.Story {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var story domain.Story
	require.NoError(t, json.Unmarshal(env.Data, &story))
	return story
}

func validStoryBody() map[string]any {
	return map[string]any{
		"title":   "Old Town Festival",
		"content": "Music and food stalls all along the river bank.",
		"location": map[string]any{
			"type":        "Point",
			"coordinates": []float64{-75.0, 40.0},
			"address":     "Old Town Square",
		},
		"images": []string{"https://example.com/a.jpg"},
		"tags":   []string{"festival"},
	}
}

func (e *testEnv) createStory(t *testing.T, token string) domain.Story {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/stories", token, validStoryBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeStory(t, rec)
}

func TestCreateStoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	callerID, token := env.newUser(t, "alice")

	t.Run("requires auth", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/stories", "", validStoryBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("creates with caller as author", func(t *testing.T) {
		body := validStoryBody()
		body["author_id"] = uuid.New().String() // must be ignored

		rec := env.do(t, http.MethodPost, "/api/v1/stories", token, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		story := decodeStory(t, rec)
		assert.Equal(t, callerID, story.AuthorID)
		require.NotNil(t, story.Author)
		assert.Equal(t, "alice", story.Author.Name)
	})

	t.Run("rejects invalid image URL", func(t *testing.T) {
		body := validStoryBody()
		body["images"] = []string{"ftp://nope"}

		rec := env.do(t, http.MethodPost, "/api/v1/stories", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects short title", func(t *testing.T) {
		body := validStoryBody()
		body["title"] = "ab"

		rec := env.do(t, http.MethodPost, "/api/v1/stories", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetStoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newUser(t, "alice")

	t.Run("not found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/stories/"+uuid.NewString(), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns story without auth", func(t *testing.T) {
		created := env.createStory(t, token)

		rec := env.do(t, http.MethodGet, "/api/v1/stories/"+created.ID.String(), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		story := decodeStory(t, rec)
		assert.Equal(t, created.ID, story.ID)
		require.NotNil(t, story.Author)
		assert.Equal(t, "alice", story.Author.Name)
	})
}

func TestUpdateStoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, authorToken := env.newUser(t, "alice")
	_, otherToken := env.newUser(t, "bob")

	story := env.createStory(t, authorToken)
	path := "/api/v1/stories/" + story.ID.String()

	t.Run("rejects unknown update field", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, path, authorToken, map[string]any{
			"title":  "Another title",
			"author": uuid.NewString(),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		got := decodeStory(t, env.do(t, http.MethodGet, path, "", nil))
		assert.Equal(t, story.Title, got.Title, "story unchanged after rejected update")
	})

	t.Run("forbidden for non-author", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, path, otherToken, map[string]any{"title": "Hijacked"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		got := decodeStory(t, env.do(t, http.MethodGet, path, "", nil))
		assert.Equal(t, story.Title, got.Title)
	})

	t.Run("not found", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/v1/stories/"+uuid.NewString(), authorToken, map[string]any{"title": "New title"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("applies partial update", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, path, authorToken, map[string]any{
			"title": "Renamed Festival",
			"tags":  []string{"updated"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got := decodeStory(t, rec)
		assert.Equal(t, "Renamed Festival", got.Title)
		assert.Equal(t, []string{"updated"}, got.Tags)
		assert.Equal(t, story.Content, got.Content)
	})
}

func TestDeleteStoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, authorToken := env.newUser(t, "alice")
	_, otherToken := env.newUser(t, "bob")

	story := env.createStory(t, authorToken)
	path := "/api/v1/stories/" + story.ID.String()

	rec := env.do(t, http.MethodDelete, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "story must survive a forbidden delete")

	rec = env.do(t, http.MethodDelete, path, authorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleLikeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, authorToken := env.newUser(t, "alice")
	likerID, likerToken := env.newUser(t, "bob")

	story := env.createStory(t, authorToken)
	path := fmt.Sprintf("/api/v1/stories/%s/like", story.ID)

	rec := env.do(t, http.MethodPost, path, likerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	liked := decodeStory(t, rec)
	assert.Equal(t, []uuid.UUID{likerID}, liked.Likes)

	rec = env.do(t, http.MethodPost, path, likerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	unliked := decodeStory(t, rec)
	assert.Empty(t, unliked.Likes, "second toggle restores the original state")

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/stories/%s/like", uuid.NewString()), likerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddCommentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, authorToken := env.newUser(t, "alice")
	_, commenterToken := env.newUser(t, "bob")

	story := env.createStory(t, authorToken)
	path := fmt.Sprintf("/api/v1/stories/%s/comments", story.ID)

	t.Run("rejects empty text", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, path, commenterToken, map[string]any{"text": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		got := decodeStory(t, env.do(t, http.MethodGet, "/api/v1/stories/"+story.ID.String(), "", nil))
		assert.Empty(t, got.Comments)
	})

	t.Run("appends comment with resolved user", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, path, commenterToken, map[string]any{"text": "lovely spot"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		got := decodeStory(t, rec)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, "lovely spot", got.Comments[0].Text)
		require.NotNil(t, got.Comments[0].User)
		assert.Equal(t, "bob", got.Comments[0].User.Name)
	})
}

func TestListStoriesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newUser(t, "alice")

	t.Run("empty store returns empty list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/stories", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var env2 envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env2))
		assert.Equal(t, "[]", string(bytes.TrimSpace(env2.Data)))
	})

	env.createStory(t, token)

	t.Run("geo and search filters are passed through", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/stories?lat=40.0&lng=-75.0&radius=10&search=festival", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.True(t, env.repo.lastFilter.HasGeo())
		require.NotNil(t, env.repo.lastFilter.RadiusKm)
		assert.Equal(t, 10.0, *env.repo.lastFilter.RadiusKm)
		require.NotNil(t, env.repo.lastFilter.Search)
		assert.Equal(t, "festival", *env.repo.lastFilter.Search)
	})

	t.Run("partial geo params are ignored", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/stories?lat=40.0", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, env.repo.lastFilter.HasGeo())
	})

	t.Run("malformed geo param rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/stories?lat=abc&lng=-75.0&radius=10", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    "carol@example.com",
		"password": "sup3rsecret",
		"name":     "carol",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var regEnv envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regEnv))
	var result domain.AuthResult
	require.NoError(t, json.Unmarshal(regEnv.Data, &result))
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "carol", result.User.Name)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "carol@example.com",
		"password": "sup3rsecret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "carol@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The issued token works against a protected endpoint
	rec = env.do(t, http.MethodGet, "/api/v1/me", result.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

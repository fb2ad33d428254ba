package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/night-tales/skazka/internal/auth"
	"github.com/night-tales/skazka/internal/models"
)

// fakeStoryService is a minimal storyService for tests.
type fakeStoryService struct {
	createStory  func(context.Context, *models.CreateStoryRequest, uuid.UUID, uuid.UUID) (*models.CreateStoryResponse, error)
	getStory     func(context.Context, uuid.UUID, uuid.UUID) (*models.StoryStatusResponse, error)
	requestAudio func(context.Context, uuid.UUID, uuid.UUID) error
	getAsset     func(context.Context, uuid.UUID, uuid.UUID) (*models.Asset, error)
}

func (f *fakeStoryService) CreateStory(ctx context.Context, req *models.CreateStoryRequest, userID, apiKeyID uuid.UUID) (*models.CreateStoryResponse, error) {
	if f.createStory != nil {
		return f.createStory(ctx, req, userID, apiKeyID)
	}
	return &models.CreateStoryResponse{StoryID: uuid.New(), Status: "queued", CreatedAt: time.Now()}, nil
}

func (f *fakeStoryService) GetStory(ctx context.Context, storyID, userID uuid.UUID) (*models.StoryStatusResponse, error) {
	if f.getStory != nil {
		return f.getStory(ctx, storyID, userID)
	}
	return nil, fmt.Errorf("story not found")
}

func (f *fakeStoryService) ListStories(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Story, error) {
	return nil, nil
}

func (f *fakeStoryService) RequestAudio(ctx context.Context, storyID, userID uuid.UUID) error {
	if f.requestAudio != nil {
		return f.requestAudio(ctx, storyID, userID)
	}
	return nil
}

func (f *fakeStoryService) GetAsset(ctx context.Context, assetID, userID uuid.UUID) (*models.Asset, error) {
	if f.getAsset != nil {
		return f.getAsset(ctx, assetID, userID)
	}
	return nil, fmt.Errorf("asset not found")
}

type fakeAssetStore struct {
	content []byte
}

func (f *fakeAssetStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func withAuth(req *http.Request, userID, apiKeyID uuid.UUID) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.APIKeyIDKey, apiKeyID)
	return req.WithContext(ctx)
}

// TestCreateStory_Unauthorized asserts 401 when request context has no user/key.
func TestCreateStory_Unauthorized(t *testing.T) {
	h := NewHandler(&fakeStoryService{}, nil, nil, nil)

	body := bytes.NewBufferString(`{"hero":"зайчик","place":"лес","mood":"весёлое","age":"ребёнок"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/stories", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateStory(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestCreateStory_InvalidBody asserts 400 for invalid JSON.
func TestCreateStory_InvalidBody(t *testing.T) {
	h := NewHandler(&fakeStoryService{}, nil, nil, nil)

	body := bytes.NewBufferString(`{invalid json`)
	req := withAuth(httptest.NewRequest(http.MethodPost, "/v1/stories", body), uuid.New(), uuid.New())
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateStory(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateStory_Accepted(t *testing.T) {
	storyID := uuid.New()
	h := NewHandler(&fakeStoryService{
		createStory: func(ctx context.Context, req *models.CreateStoryRequest, userID, apiKeyID uuid.UUID) (*models.CreateStoryResponse, error) {
			if req.Hero != "зайчик" {
				t.Errorf("hero = %q", req.Hero)
			}
			return &models.CreateStoryResponse{StoryID: storyID, Status: "queued", CreatedAt: time.Now()}, nil
		},
	}, nil, nil, nil)

	body := bytes.NewBufferString(`{"hero":"зайчик","place":"лес","mood":"весёлое","age":"ребёнок","length":"short"}`)
	req := withAuth(httptest.NewRequest(http.MethodPost, "/v1/stories", body), uuid.New(), uuid.New())
	rec := httptest.NewRecorder()

	h.CreateStory(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.CreateStoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.StoryID != storyID {
		t.Errorf("story_id = %s, want %s", resp.StoryID, storyID)
	}
}

func TestGetStory_NotFound(t *testing.T) {
	h := NewHandler(&fakeStoryService{}, nil, nil, nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/v1/stories/"+uuid.NewString(), nil), uuid.New(), uuid.New())
	req = mux.SetURLVars(req, map[string]string{"id": uuid.NewString()})
	rec := httptest.NewRecorder()

	h.GetStory(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRequestAudio_Conflict(t *testing.T) {
	h := NewHandler(&fakeStoryService{
		requestAudio: func(ctx context.Context, storyID, userID uuid.UUID) error {
			return fmt.Errorf("audio rendering already in progress")
		},
	}, nil, nil, nil)

	storyID := uuid.NewString()
	req := withAuth(httptest.NewRequest(http.MethodPost, "/v1/stories/"+storyID+"/audio", nil), uuid.New(), uuid.New())
	req = mux.SetURLVars(req, map[string]string{"id": storyID})
	rec := httptest.NewRecorder()

	h.RequestAudio(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestAudio_Accepted(t *testing.T) {
	h := NewHandler(&fakeStoryService{}, nil, nil, nil)

	storyID := uuid.NewString()
	req := withAuth(httptest.NewRequest(http.MethodPost, "/v1/stories/"+storyID+"/audio", nil), uuid.New(), uuid.New())
	req = mux.SetURLVars(req, map[string]string{"id": storyID})
	rec := httptest.NewRecorder()

	h.RequestAudio(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetAssetContent_StreamsBody(t *testing.T) {
	content := []byte("image-bytes")
	assetID := uuid.New()

	h := NewHandler(&fakeStoryService{
		getAsset: func(ctx context.Context, id, userID uuid.UUID) (*models.Asset, error) {
			return &models.Asset{ID: id, Kind: "cover", MimeType: "image/jpeg", S3Key: "stories/x/cover.jpg"}, nil
		},
	}, nil, &fakeAssetStore{content: content}, nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/v1/assets/"+assetID.String()+"/content", nil), uuid.New(), uuid.New())
	req = mux.SetURLVars(req, map[string]string{"id": assetID.String()})
	rec := httptest.NewRecorder()

	h.GetAssetContent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("content type = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Error("body mismatch")
	}
}

func TestHealthz(t *testing.T) {
	h := NewHandler(&fakeStoryService{}, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

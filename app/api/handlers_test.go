package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/pipeline"
	"github.com/blogsmith/refresher/app/tasks"
)

type fakeScheduler struct {
	enqueued []tasks.TaskInterface
	full     bool
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}

func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	if f.full {
		return errQueueFull
	}
	f.enqueued = append(f.enqueued, task)
	return nil
}

func (f *fakeScheduler) QueueLength() int { return len(f.enqueued) }

var errQueueFull = errors.New("task queue is full")

type nopIngester struct{}

func (nopIngester) Run(ctx context.Context, target, startPage int) pipeline.IngestReport {
	return pipeline.IngestReport{}
}

type nopAugmenter struct{}

func (nopAugmenter) Run(ctx context.Context, ids ...int64) (pipeline.Report, error) {
	return pipeline.Report{}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setup(t *testing.T, apiKey string) (*gin.Engine, *database.SQLArticleRepository, *fakeScheduler) {
	t.Helper()

	handler, repo, scheduler := newTestHandler(t)
	return NewServer(handler, apiKey), repo, scheduler
}

func newTestHandler(t *testing.T) (*Handler, *database.SQLArticleRepository, *fakeScheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo := database.NewArticleRepository(db)
	scheduler := &fakeScheduler{}
	crawl := CrawlDefaults{Target: 5, StartPage: 15, MaxTarget: 100, MaxStartPage: 200}
	handler := NewHandler(repo, scheduler, nopIngester{}, nopAugmenter{}, crawl, "test")

	return handler, repo, scheduler
}

func do(r *gin.Engine, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestArticles_CRUD(t *testing.T) {
	r, _, _ := setup(t, "")

	w, env := do(r, http.MethodPost, "/api/articles", `{"title":"Hello World","content":"<p>x</p>","imageUrl":"https://cdn.example.com/a.png"}`)
	if w.Code != http.StatusCreated || !env.Success {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created map[string]any
	json.Unmarshal(env.Data, &created)
	if created["slug"] != "hello-world" {
		t.Errorf("Expected slug derived from title, got %v", created["slug"])
	}
	if created["image_url"] != "https://cdn.example.com/a.png" || created["imageUrl"] != "https://cdn.example.com/a.png" {
		t.Errorf("Expected image under both spellings, got %v / %v", created["image_url"], created["imageUrl"])
	}
	if created["is_updated"] != false || created["isUpdated"] != false {
		t.Errorf("Expected both lineage spellings, got %v", created)
	}

	w, _ = do(r, http.MethodPost, "/api/articles", `{"slug":"hello-world","title":"Dup"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate slug, got %d", w.Code)
	}

	w, env = do(r, http.MethodPut, "/api/articles/1", `{"title":"Changed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on update, got %d: %s", w.Code, w.Body.String())
	}
	var updated ArticleResponse
	json.Unmarshal(env.Data, &updated)
	if updated.Title != "Changed" || updated.Content != "<p>x</p>" {
		t.Errorf("Unexpected updated article: %+v", updated)
	}

	w, env = do(r, http.MethodGet, "/api/articles", "")
	var list []map[string]any
	json.Unmarshal(env.Data, &list)
	if w.Code != http.StatusOK || len(list) != 1 {
		t.Errorf("Expected one article in list, got %d: %s", w.Code, w.Body.String())
	}

	w, _ = do(r, http.MethodDelete, "/api/articles/1", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", w.Code)
	}

	w, env = do(r, http.MethodGet, "/api/articles/1", "")
	if w.Code != http.StatusNotFound || env.Success {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestGetArticle_InvalidID(t *testing.T) {
	r, _, _ := setup(t, "")

	if w, _ := do(r, http.MethodGet, "/api/articles/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestGetVersions(t *testing.T) {
	r, repo, _ := setup(t, "")
	ctx := context.Background()

	origID, err := repo.Upsert(ctx, database.Article{Slug: "foo", Title: "Foo"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	updID, err := repo.Upsert(ctx, database.Article{Slug: "foo-updated", Title: "Foo (Updated)", IsUpdated: true, OriginalArticleID: &origID})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	for _, id := range []int64{origID, updID} {
		w, env := do(r, http.MethodGet, "/api/articles/"+itoa(id)+"/versions", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		var versions VersionsResponse
		json.Unmarshal(env.Data, &versions)
		if versions.Original.ID != origID || len(versions.Updates) != 1 || versions.Updates[0].ID != updID {
			t.Errorf("Unexpected versions for id %d: %+v", id, versions)
		}
		if versions.Updates[0].OriginalArticleIDCamel == nil || *versions.Updates[0].OriginalArticleIDCamel != origID {
			t.Errorf("Expected camelCase back-reference, got %+v", versions.Updates[0])
		}
	}
}

func TestCreateArticle_SnakeCaseLineage(t *testing.T) {
	r, repo, _ := setup(t, "")

	origID, _ := repo.Upsert(context.Background(), database.Article{Slug: "foo", Title: "Foo"})

	w, _ := do(r, http.MethodPost, "/api/articles", `{"slug":"foo-v2","title":"x","is_updated":true,"original_article_id":`+itoa(origID)+`}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w, _ = do(r, http.MethodPost, "/api/articles", `{"slug":"bad","title":"x","isUpdated":true}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for update without original, got %d", w.Code)
	}

	update, err := repo.GetBySlug(context.Background(), "foo-v2")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	w, _ = do(r, http.MethodPost, "/api/articles", `{"slug":"foo-v3","title":"x","is_updated":true,"original_article_id":`+itoa(update.ID)+`}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for update pointing at an update, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPipelineTriggers(t *testing.T) {
	r, _, scheduler := setup(t, "secret")

	if w, _ := do(r, http.MethodPost, "/api/pipeline/crawl", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
	if w, _ := do(r, http.MethodPost, "/api/pipeline/crawl", "", "X-API-Key", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}

	w, env := do(r, http.MethodPost, "/api/pipeline/crawl", "", "X-API-Key", "secret")
	if w.Code != http.StatusAccepted || !env.Success {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	w, _ = do(r, http.MethodPost, "/api/pipeline/augment", `{"ids":[1,2]}`, "Authorization", "Bearer secret")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	if len(scheduler.enqueued) != 2 {
		t.Fatalf("Expected two tasks enqueued, got %d", len(scheduler.enqueued))
	}
	if scheduler.enqueued[0].GetType() != tasks.TaskTypeCrawl || scheduler.enqueued[1].GetType() != tasks.TaskTypeAugment {
		t.Errorf("Unexpected task types: %s, %s", scheduler.enqueued[0].GetType(), scheduler.enqueued[1].GetType())
	}
	if augment, ok := scheduler.enqueued[1].(*tasks.AugmentTask); !ok || len(augment.IDs) != 2 {
		t.Errorf("Expected augment task for ids [1 2], got %+v", scheduler.enqueued[1])
	}

	scheduler.full = true
	if w, _ := do(r, http.MethodPost, "/api/pipeline/augment", "", "X-API-Key", "secret"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 on full queue, got %d", w.Code)
	}
}

func TestTriggerCrawl_Limits(t *testing.T) {
	r, _, scheduler := setup(t, "")

	for _, body := range []string{
		`{"target":4611686018427387904}`,
		`{"target":101}`,
		`{"start_page":201}`,
		`{"target":-1}`,
	} {
		if w, _ := do(r, http.MethodPost, "/api/pipeline/crawl", body); w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", body, w.Code)
		}
	}
	if len(scheduler.enqueued) != 0 {
		t.Fatalf("Expected nothing enqueued, got %d tasks", len(scheduler.enqueued))
	}

	if w, _ := do(r, http.MethodPost, "/api/pipeline/crawl", `{"target":100,"start_page":200}`); w.Code != http.StatusAccepted {
		t.Errorf("Expected 202 at the limits, got %d", w.Code)
	}
}

func TestTriggerAugment_NotConfigured(t *testing.T) {
	handler, _, scheduler := newTestHandler(t)
	missing := errors.New("missing required credential: SERP_API_KEY")
	r := NewServer(handler.WithAugmentCheck(func() error { return missing }), "")

	w, env := do(r, http.MethodPost, "/api/pipeline/augment", "")
	if w.Code != http.StatusServiceUnavailable || env.Success {
		t.Errorf("Expected 503 when credentials are missing, got %d", w.Code)
	}
	if !strings.Contains(env.Error, "SERP_API_KEY") {
		t.Errorf("Expected missing credential in error, got %q", env.Error)
	}
	if len(scheduler.enqueued) != 0 {
		t.Errorf("Expected nothing enqueued, got %d tasks", len(scheduler.enqueued))
	}

	if w, _ := do(r, http.MethodPost, "/api/pipeline/crawl", ""); w.Code != http.StatusAccepted {
		t.Errorf("Expected crawl to stay available, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r, repo, _ := setup(t, "")
	repo.Upsert(context.Background(), database.Article{Slug: "foo", Title: "Foo"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var health map[string]any
	json.Unmarshal(w.Body.Bytes(), &health)

	if w.Code != http.StatusOK || health["status"] != "healthy" {
		t.Errorf("Unexpected health response %d: %s", w.Code, w.Body.String())
	}
	articles, _ := health["articles"].(map[string]any)
	if articles["total"] != float64(1) || articles["originals"] != float64(1) {
		t.Errorf("Expected article counts, got %v", health["articles"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := setup(t, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "refresher_crawl_candidates_total") {
		t.Errorf("Expected prometheus exposition, got %d", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestGetUpdatesFeed(t *testing.T) {
	r, repo, _ := setup(t, "")
	ctx := context.Background()

	origID, _ := repo.Upsert(ctx, database.Article{Slug: "foo", Title: "Foo"})
	repo.Upsert(ctx, database.Article{Slug: "foo-updated", Title: "Foo (Updated)", Content: "<p>new</p>", IsUpdated: true, OriginalArticleID: &origID})

	req := httptest.NewRequest(http.MethodGet, "/feeds/updates.xml", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected only the update in the feed, got %s items", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "<title>Foo (Updated)</title>") || strings.Contains(w.Body.String(), "<title>Foo</title>") {
		t.Errorf("Unexpected feed body:\n%s", w.Body.String())
	}
}

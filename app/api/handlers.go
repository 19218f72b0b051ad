package api

import (
	"cmp"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/feed"
	"github.com/blogsmith/refresher/app/slug"
	"github.com/blogsmith/refresher/app/tasks"
)

func NewHandler(repo database.ArticleRepository, scheduler tasks.TaskSchedulerInterface,
	ingester tasks.Ingester, augmenter tasks.Augmenter, crawl CrawlDefaults, version string) *Handler {
	return &Handler{
		repo:      repo,
		scheduler: scheduler,
		ingester:  ingester,
		augmenter: augmenter,
		crawl:     crawl,
		generator: feed.NewGenerator(),
		channel:   feed.Channel{Title: "Refreshed articles", Generator: "refresher/" + version},
		version:   version,
	}
}

// WithChannel sets the title and link of the updates feed.
func (h *Handler) WithChannel(title, link string) *Handler {
	h.channel.Title = title
	h.channel.Link = link
	return h
}

// WithAugmentCheck gates the augment trigger on check, typically a
// credential check, so a misconfigured process refuses before any work starts.
func (h *Handler) WithAugmentCheck(check func() error) *Handler {
	h.augmentCheck = check
	return h
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func failure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if counts, err := h.repo.Count(c.Request.Context()); err == nil {
		health["articles"] = map[string]int{
			"total":     counts.Total,
			"originals": counts.Originals,
			"updates":   counts.Updates,
		}
	} else {
		slog.Error("Database error", "operation", "count", "error", err)
		health["status"] = "degraded"
	}

	if h.scheduler != nil {
		health["queued_tasks"] = h.scheduler.QueueLength()
	}

	c.JSON(http.StatusOK, health)
}

// GetUpdatesFeed serves published updates as RSS.
func (h *Handler) GetUpdatesFeed(c *gin.Context) {
	articles, err := h.repo.List(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	updates := make([]database.Article, 0, len(articles))
	for _, a := range articles {
		if a.IsUpdated {
			updates = append(updates, a)
		}
	}

	channel := h.channel
	channel.SelfLink = requestScheme(c) + "://" + c.Request.Host + c.Request.URL.Path

	rss, err := h.generator.Run(channel, updates)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(updates)))
	c.String(http.StatusOK, rss)
}

func requestScheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}

func (h *Handler) ListArticles(c *gin.Context) {
	articles, err := h.repo.List(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		failure(c, http.StatusInternalServerError, "Database error")
		return
	}

	success(c, http.StatusOK, newArticleResponses(articles))
}

func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	article, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.repositoryError(c, "get_article", id, err)
		return
	}

	success(c, http.StatusOK, newArticleResponse(*article))
}

// GetVersions returns an original together with its updates. Asking for an
// update resolves to its original.
func (h *Handler) GetVersions(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	article, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.repositoryError(c, "get_versions", id, err)
		return
	}

	if article.OriginalArticleID != nil {
		article, err = h.repo.GetByID(ctx, *article.OriginalArticleID)
		if err != nil {
			h.repositoryError(c, "get_versions", id, err)
			return
		}
	}

	updates, err := h.repo.ListUpdates(ctx, article.ID)
	if err != nil {
		h.repositoryError(c, "list_updates", article.ID, err)
		return
	}

	success(c, http.StatusOK, VersionsResponse{
		Original: newArticleResponse(*article),
		Updates:  newArticleResponses(updates),
	})
}

func (h *Handler) CreateArticle(c *gin.Context) {
	var req ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	article := req.article()
	if article.Slug == "" {
		article.Slug = slug.FromTitle(article.Title)
	}
	if article.Slug == "" {
		failure(c, http.StatusBadRequest, "Either slug or title is required")
		return
	}

	created, err := h.repo.Create(c.Request.Context(), article)
	switch {
	case errors.Is(err, database.ErrSlugTaken):
		failure(c, http.StatusConflict, "Slug already exists")
		return
	case errors.Is(err, database.ErrInvalidLineage), errors.Is(err, database.ErrEmptySlug):
		failure(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Database error", "operation", "create_article", "slug", article.Slug, "error", err)
		failure(c, http.StatusInternalServerError, "Database error")
		return
	}

	success(c, http.StatusCreated, newArticleResponse(*created))
}

func (h *Handler) UpdateArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.repo.Update(c.Request.Context(), id, database.ArticleUpdate{
		Title:   req.Title,
		Content: req.Content,
		Excerpt: req.Excerpt,
		Author:  req.Author,
	})
	if err != nil {
		h.repositoryError(c, "update_article", id, err)
		return
	}

	success(c, http.StatusOK, newArticleResponse(*updated))
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		h.repositoryError(c, "delete_article", id, err)
		return
	}

	success(c, http.StatusOK, newArticleResponse(*deleted))
}

func (h *Handler) TriggerCrawl(c *gin.Context) {
	var req CrawlRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Target < 0 || req.StartPage < 0 {
		failure(c, http.StatusBadRequest, "target and start_page must be positive")
		return
	}
	if h.crawl.MaxTarget > 0 && req.Target > h.crawl.MaxTarget {
		failure(c, http.StatusBadRequest, "target must not exceed "+strconv.Itoa(h.crawl.MaxTarget))
		return
	}
	if h.crawl.MaxStartPage > 0 && req.StartPage > h.crawl.MaxStartPage {
		failure(c, http.StatusBadRequest, "start_page must not exceed "+strconv.Itoa(h.crawl.MaxStartPage))
		return
	}

	task := tasks.NewCrawlTask(h.ingester, cmp.Or(req.Target, h.crawl.Target), cmp.Or(req.StartPage, h.crawl.StartPage))
	h.enqueue(c, task)
}

func (h *Handler) TriggerAugment(c *gin.Context) {
	if h.augmentCheck != nil {
		if err := h.augmentCheck(); err != nil {
			slog.Warn("Augmentation requested but not configured", "error", err)
			failure(c, http.StatusServiceUnavailable, "Augmentation not configured: "+err.Error())
			return
		}
	}

	var req AugmentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.enqueue(c, tasks.NewAugmentTask(h.augmenter, req.IDs...))
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface) {
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue task", "type", string(task.GetType()), "error", err)
		failure(c, http.StatusServiceUnavailable, err.Error())
		return
	}

	slog.Info("Task enqueued via API", "type", string(task.GetType()), "id", task.GetID())
	success(c, http.StatusAccepted, gin.H{"task_id": task.GetID(), "type": task.GetType()})
}

func (h *Handler) repositoryError(c *gin.Context, operation string, id int64, err error) {
	if errors.Is(err, database.ErrNotFound) {
		failure(c, http.StatusNotFound, "Article not found")
		return
	}

	slog.Error("Database error", "operation", operation, "id", id, "error", err)
	failure(c, http.StatusInternalServerError, "Database error")
}

func articleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		failure(c, http.StatusBadRequest, "Invalid article id")
		return 0, false
	}
	return id, true
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (r ArticleRequest) article() database.Article {
	a := database.Article{
		Slug:              deref(r.Slug),
		Title:             deref(r.Title),
		Content:           deref(r.Content),
		Excerpt:           deref(r.Excerpt),
		Author:            deref(r.Author),
		PublishedAt:       pick(r.PublishedAt, r.PublishedAtCamel),
		ImageURL:          deref(pick(r.ImageURL, r.ImageURLCamel)),
		URL:               deref(r.URL),
		Source:            deref(r.Source),
		OriginalArticleID: pick(r.OriginalArticleID, r.OriginalArticleIDCamel),
	}
	if updated := pick(r.IsUpdated, r.IsUpdatedCamel); updated != nil {
		a.IsUpdated = *updated
	}
	return a
}

func pick[T any](snake, camel *T) *T {
	if snake != nil {
		return snake
	}
	return camel
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

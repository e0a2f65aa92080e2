package archive

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsgrab/story"
)

// Pagination limits for GET /api/v1/entries.
const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// APIServer serves archived entries over HTTP.
type APIServer struct {
	archive *Archive
}

// NewAPIServer creates a new API server for the given archive.
func NewAPIServer(archive *Archive) *APIServer {
	return &APIServer{
		archive: archive,
	}
}

// SetupRouter configures a Gin router with the archive API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.New()
	s.Mount(router.Group("/api/v1"))
	return router
}

// Mount registers the archive routes on the given group.
func (s *APIServer) Mount(group *gin.RouterGroup) {
	group.GET("/entries", s.HandleListEntries)
	group.GET("/entries/:key", s.HandleGetEntry)
	group.GET("/entries/:key/body", s.HandleGetBody)
}

// ListEntriesResponse represents the response for GET /api/v1/entries.
type ListEntriesResponse struct {
	Entries    []Entry     `json:"entries"`
	Incomplete []story.Key `json:"incomplete"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleListEntries handles GET /api/v1/entries. Entries are sorted newest
// first.
func (s *APIServer) HandleListEntries(c *gin.Context) {
	result, err := s.archive.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to list entries"))
		return
	}

	entries := result.Entries

	// Filter by since (optional)
	if since := c.Query("since"); since != "" {
		sinceTime, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid since parameter: must be ISO 8601 format"))
			return
		}
		entries = filterSince(entries, sinceTime)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FetchedAt.After(entries[j].FetchedAt)
	})

	limit, ok := intParam(c, "limit", defaultListLimit, 1)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset, ok := intParam(c, "offset", 0, 0)
	if !ok {
		return
	}

	incomplete := result.Incomplete
	if incomplete == nil {
		incomplete = []story.Key{}
	}

	c.JSON(http.StatusOK, ListEntriesResponse{
		Entries:    paginate(entries, offset, limit),
		Incomplete: incomplete,
		Total:      len(entries),
		Limit:      limit,
		Offset:     offset,
	})
}

// HandleGetEntry handles GET /api/v1/entries/:key.
func (s *APIServer) HandleGetEntry(c *gin.Context) {
	key := story.Key(c.Param("key"))

	entry, err := s.archive.Get(key)
	switch {
	case errors.Is(err, ErrInvalidKey):
		c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", err.Error()))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to read entry"))
		return
	case entry == nil:
		c.JSON(http.StatusNotFound, errorResponse("not_found", "Entry not found"))
		return
	}

	c.JSON(http.StatusOK, entry)
}

// HandleGetBody handles GET /api/v1/entries/:key/body and returns the stored
// HTML.
func (s *APIServer) HandleGetBody(c *gin.Context) {
	key := story.Key(c.Param("key"))

	body, err := s.archive.Body(key)
	switch {
	case errors.Is(err, ErrInvalidKey):
		c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", err.Error()))
		return
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", "Entry not found"))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to read body"))
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

// intParam parses an optional integer query parameter. On a bad value it
// writes a 400 response and returns false.
func intParam(c *gin.Context, name string, def, lowest int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < lowest {
		c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid "+name+" parameter"))
		return 0, false
	}

	return v, true
}

// filterSince keeps entries fetched at or after t.
func filterSince(entries []Entry, t time.Time) []Entry {
	var filtered []Entry
	for _, e := range entries {
		if !e.FetchedAt.Before(t) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// paginate returns the [offset, offset+limit) window of entries.
func paginate(entries []Entry, offset, limit int) []Entry {
	if offset >= len(entries) {
		return []Entry{}
	}

	end := min(offset+limit, len(entries))
	return entries[offset:end]
}

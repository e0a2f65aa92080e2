package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/newsgrab/story"
)

// maxListLimit caps the number of attempts returned in one response.
const maxListLimit = 1000

// APIServer serves download history over HTTP.
type APIServer struct {
	store *Store
}

// NewAPIServer creates a new history API server.
func NewAPIServer(store *Store) *APIServer {
	return &APIServer{
		store: store,
	}
}

// SetupRouter configures a Gin router with the history API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.New()
	s.Mount(router.Group("/api/v1"))
	return router
}

// Mount registers the history routes on the given group.
func (s *APIServer) Mount(group *gin.RouterGroup) {
	group.GET("/attempts", s.HandleListAttempts)
	group.GET("/attempts/:id", s.HandleGetAttempt)
}

// ListAttemptsResponse represents the response for GET /api/v1/attempts.
type ListAttemptsResponse struct {
	Attempts []Attempt `json:"attempts"`
	Total    int       `json:"total"`
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

// HandleListAttempts handles GET /api/v1/attempts.
func (s *APIServer) HandleListAttempts(c *gin.Context) {
	filter := Filter{Limit: 100}

	if outcomeParam := c.Query("outcome"); outcomeParam != "" {
		outcome := Outcome(outcomeParam)
		if !outcome.Valid() {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", ErrInvalidOutcome.Error()))
			return
		}
		filter.Outcome = &outcome
	}

	if keyParam := c.Query("key"); keyParam != "" {
		key := story.Key(keyParam)
		filter.Key = &key
	}

	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid limit parameter"))
			return
		}
		filter.Limit = min(limit, maxListLimit)
	}

	attempts, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to list attempts"))
		return
	}

	c.JSON(http.StatusOK, ListAttemptsResponse{
		Attempts: attempts,
		Total:    len(attempts),
	})
}

// HandleGetAttempt handles GET /api/v1/attempts/:id.
func (s *APIServer) HandleGetAttempt(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid attempt ID"))
		return
	}

	attempt, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to get attempt"))
		return
	}

	c.JSON(http.StatusOK, attempt)
}

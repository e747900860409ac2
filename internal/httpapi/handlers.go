package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Stats   *types.Stats `json:"stats,omitempty"`
	Error   string       `json:"error,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// IDRequest is the body of DELETE /api/todos and POST /api/todos/toggle.
type IDRequest struct {
	ID string `json:"id"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"status": "ok"}})
}

func (s *Server) listTodos(c *gin.Context) {
	todos, stats, err := s.gateway.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: todos, Stats: &stats})
}

func (s *Server) createTodo(c *gin.Context) {
	var draft types.Draft
	if !s.bind(c, &draft) {
		return
	}
	todo, err := s.gateway.Create(c.Request.Context(), draft)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: todo})
}

func (s *Server) updateTodo(c *gin.Context) {
	var patch types.Patch
	if !s.bind(c, &patch) {
		return
	}
	todo, err := s.gateway.Update(c.Request.Context(), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: todo})
}

func (s *Server) removeTodo(c *gin.Context) {
	var req IDRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.gateway.Remove(c.Request.Context(), req.ID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

func (s *Server) toggleTodo(c *gin.Context) {
	var req IDRequest
	if !s.bind(c, &req) {
		return
	}
	todo, err := s.gateway.ToggleStatus(c.Request.Context(), req.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: todo})
}

// bind decodes the JSON body into dst, replying 400 on failure.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// fail maps a gateway error to its status code and envelope.
func (s *Server) fail(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, resp)
}

func errorResponse(err error) (int, Response) {
	switch {
	case errors.Is(err, types.ErrValidationFailed):
		resp := Response{Error: types.ErrValidationFailed.Error()}
		for _, fe := range types.FieldErrorsOf(err) {
			resp.Fields = append(resp.Fields, FieldError{Field: fe.Field, Message: fe.Err.Error()})
		}
		return http.StatusBadRequest, resp
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, Response{Error: types.ErrNotFound.Error()}
	case errors.Is(err, types.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, Response{Error: err.Error()}
	default:
		return http.StatusInternalServerError, Response{Error: types.ErrUnknown.Error() + ": " + err.Error()}
	}
}

package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"marketplace-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const internalErrorMessage = "internal server error"

// Envelope is the body of every JSON response except the provider IPN ack.
type Envelope struct {
	Message    string            `json:"message"`
	MessageEN  string            `json:"message_en"`
	Data       any               `json:"data"`
	Status     int               `json:"status"`
	TimeStamp  time.Time         `json:"timeStamp"`
	Violations map[string]string `json:"violations,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{
		Message:   "Thành công",
		MessageEN: "Success",
		Data:      data,
		Status:    status,
		TimeStamp: time.Now(),
	})
}

// respondError maps err onto the envelope. Domain errors keep their message
// and status; anything else is logged and masked unless debug is set.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		de *domain.Error
		ve validator.ValidationErrors
	)
	env := Envelope{TimeStamp: time.Now()}

	switch {
	case errors.As(err, &de):
		env.Status = de.Kind.HTTPStatus()
		env.Message = de.Message
		env.Violations = de.Violations
	case errors.As(err, &ve):
		env.Status = http.StatusBadRequest
		env.Message = "validation failed"
		env.Violations = make(map[string]string, len(ve))
		for _, fe := range ve {
			env.Violations[jsonName(fe.Field())] = fe.Tag()
		}
	default:
		env.Status = http.StatusInternalServerError
		env.Message = internalErrorMessage
		if h.debug {
			env.Message = err.Error()
		}
		h.logger.Error(err, "request failed", "method", c.Request.Method, "path", c.FullPath(),
			"requestId", c.GetString(requestIDKey))
	}
	env.MessageEN = env.Message
	c.AbortWithStatusJSON(env.Status, env)
}

// badRequest reports a malformed body or parameter.
func (h *Handler) badRequest(c *gin.Context, field, reason string) {
	h.respondError(c, &domain.Error{
		Kind:       domain.KindBadRequest,
		Code:       "BAD_REQUEST",
		Message:    "invalid request",
		Violations: map[string]string{field: reason},
	})
}

// bindJSON decodes the body into dst. An empty body is allowed when
// optional is set.
func (h *Handler) bindJSON(c *gin.Context, dst any, optional bool) bool {
	err := c.ShouldBindJSON(dst)
	switch {
	case err == nil:
		return true
	case optional && errors.Is(err, io.EOF):
		return true
	}
	h.bindError(c, "body", err)
	return false
}

// bindError answers 400 for a binding failure: per-field violations for
// validation errors, the decoder message otherwise.
func (h *Handler) bindError(c *gin.Context, field string, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		h.respondError(c, err)
		return
	}
	h.badRequest(c, field, err.Error())
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medtime/medtime-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps application error codes to HTTP statuses. The error
// is also attached to the gin context so the error middleware can log it.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	message := "internal server error"
	retryable := false

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
		switch appErr.Code {
		case errors.ErrNotFound:
			status = http.StatusNotFound
		case errors.ErrBadRequest:
			status = http.StatusBadRequest
		case errors.ErrConfiguration:
			status = http.StatusUnprocessableEntity
		case errors.ErrExhausted, errors.ErrInvalidTransition:
			status = http.StatusConflict
		case errors.ErrConflict:
			status = http.StatusConflict
			retryable = true
		}
	}

	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:      status,
			Message:   message,
			Retryable: retryable,
		},
	})
}

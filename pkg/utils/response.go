package utils

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	appErrors "mds-backend/pkg/errors"
)

// ErrorResponse writes err as an MDS error payload. Errors that are not *MDSError are
// reported as server_error.
func ErrorResponse(c *gin.Context, err error) {
	mdsErr := appErrors.AsMDSError(err)
	c.JSON(mdsErr.HTTPStatus(), mdsErr)
}

// AbortWithError writes err and stops the handler chain.
func AbortWithError(c *gin.Context, err *appErrors.MDSError) {
	c.AbortWithStatusJSON(err.HTTPStatus(), err)
}

// BindError converts a request body decode failure into an MDS error.
func BindError(err error) *appErrors.MDSError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, io.EOF):
		return appErrors.MissingParam("missing request body")
	case errors.As(err, &syntaxErr):
		return appErrors.BadParam("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return appErrors.BadParam("invalid %s %s", typeErr.Field, typeErr.Value)
	default:
		return appErrors.BadParam("%s", err.Error())
	}
}

package server

import (
	"errors"

	"github.com/klass-lk/postboard/internal/model"
	"go.uber.org/zap"
)

// FromError maps service errors onto ApiError. Anything that is not the client's
// fault is logged here and replaced by internalMessage.
func FromError(err error, internalMessage string) ApiError {
	var apiErr ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return ErrBadRequest.New(validationErr.Message).WithFields(validationErr.Fields...)
	}

	if errors.Is(err, model.ErrPostNotFound) {
		return ErrNotFound.New("Post not found")
	}

	zap.L().Error(internalMessage, zap.Error(err))
	return ErrInternal.New(internalMessage)
}

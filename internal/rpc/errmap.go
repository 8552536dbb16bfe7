package rpc

import (
	"errors"
	"fmt"

	"github.com/glyphbot/shardlink/internal/rpc/gateway"
	"github.com/glyphbot/shardlink/internal/rpc/store"
)

// MapError translates a collaborator error into a terminal failure envelope.
// Permission and hierarchy failures from the gateway client land in the
// gateway band with their dedicated codes; everything unrecognised becomes a
// ServerException carrying the error's type name and message.
func MapError(err error) Response {
	var permErr *gateway.PermissionError
	if errors.As(err, &permErr) {
		return Failure(StatusGatewayError, CodeMissingPermission, permErr.Error())
	}

	var hierErr *gateway.HierarchyError
	if errors.As(err, &hierErr) {
		return Failure(StatusGatewayError, CodeCannotInteract, hierErr.Error())
	}

	var capErr *gateway.CapabilityError
	if errors.As(err, &capErr) {
		return Failure(StatusBadRequest, CodeUnsupportedCapability, capErr.Error())
	}

	if errors.Is(err, store.ErrNotFound) {
		return Failure(StatusNotFound, CodeNotFound, err.Error())
	}

	return Failure(StatusServerError, CodeServerException, fmt.Sprintf("%T: %s", err, err))
}

// ErrorCategory buckets failures for metrics.
type ErrorCategory string

const (
	ErrorCategoryNone       ErrorCategory = "none"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryNotFound   ErrorCategory = "not_found"
	ErrorCategoryGateway    ErrorCategory = "gateway"
	ErrorCategoryServer     ErrorCategory = "server"
)

// Categorize maps a terminal response onto its metrics bucket by status band.
func Categorize(resp Response) ErrorCategory {
	switch {
	case !resp.IsError():
		return ErrorCategoryNone
	case resp.StatusCode == StatusNotFound:
		return ErrorCategoryNotFound
	case resp.StatusCode >= StatusNotFound && resp.StatusCode < StatusServerError:
		return ErrorCategoryValidation
	case resp.StatusCode >= StatusGatewayError:
		return ErrorCategoryGateway
	default:
		return ErrorCategoryServer
	}
}

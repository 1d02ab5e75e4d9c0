package gcp

import (
	"context"
	"errors"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/status"
)

// ErrorCode extracts the provider's own error code and message from a client error.
// JSON APIs report HTTP status codes, gRPC APIs report canonical code names.
func ErrorCode(err error) (code, message string) {
	if err == nil {
		return "", ""
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return "NotFound", err.Error()
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Error()
		}
		return strconv.Itoa(gerr.Code), msg
	}

	var aerr *apierror.APIError
	if errors.As(err, &aerr) {
		if s := aerr.GRPCStatus(); s != nil {
			return s.Code().String(), s.Message()
		}
		if aerr.HTTPCode() > 0 {
			return strconv.Itoa(aerr.HTTPCode()), aerr.Error()
		}
	}

	if s, ok := status.FromError(err); ok {
		return s.Code().String(), s.Message()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded", err.Error()
	case errors.Is(err, context.Canceled):
		return "Canceled", err.Error()
	}
	return "Unknown", err.Error()
}

package transport

import (
	"errors"
	"fmt"
	"time"

	"showroom/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error" yaml:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code" yaml:"code"`
	Message   string                 `json:"message" yaml:"message"`
	Details   map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	Timestamp string                 `json:"timestamp" yaml:"timestamp"`
}

// Error codes
const (
	CodeNotFound    = "not_found"
	CodeDuplicate   = "duplicate"
	CodeOutOfStock  = "out_of_stock"
	CodeInvalid     = "invalid_entry"
	CodeAssetFetch  = "image_unavailable"
	CodeAssetWrite  = "image_write_failed"
	CodeAssetDelete = "image_delete_failed"
	CodePersistence = "persistence_failed"
	CodeUsage       = "usage"
	CodeInternal    = "internal"
)

// usageError marks bad command line input
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// describeError maps an error to a stable code, an operator-facing message
// and optional details.
func describeError(err error) ErrorDetail {
	detail := ErrorDetail{
		Code:      CodeInternal,
		Message:   err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var (
		keyErr     *domain.KeyError
		validation domain.ValidationErrors
		assetErr   *domain.AssetError
		persistErr *domain.PersistenceError
		usage      *usageError
	)

	if errors.As(err, &keyErr) {
		detail.Details = map[string]interface{}{"brand": keyErr.Key.Brand, "model": keyErr.Key.Model}
	}

	switch {
	case errors.As(err, &usage):
		detail.Code = CodeUsage
	case errors.Is(err, domain.ErrNotFound):
		detail.Code = CodeNotFound
		if keyErr != nil {
			detail.Message = fmt.Sprintf("No %s %s in the catalog", keyErr.Key.Brand, keyErr.Key.Model)
		}
	case errors.Is(err, domain.ErrDuplicateKey):
		detail.Code = CodeDuplicate
		if keyErr != nil {
			detail.Message = fmt.Sprintf("%s %s is already in the catalog", keyErr.Key.Brand, keyErr.Key.Model)
		}
	case errors.Is(err, domain.ErrOutOfStock):
		detail.Code = CodeOutOfStock
		if keyErr != nil {
			detail.Message = fmt.Sprintf("%s %s is out of stock", keyErr.Key.Brand, keyErr.Key.Model)
		}
	case errors.As(err, &validation):
		detail.Code = CodeInvalid
		detail.Message = "Invalid entry"
		detail.Details = map[string]interface{}{"validation_errors": []domain.ValidationError(validation)}
	case errors.Is(err, domain.ErrAssetFetch):
		detail.Code = CodeAssetFetch
		detail.Message = "Image could not be fetched"
	case errors.Is(err, domain.ErrAssetWrite):
		detail.Code = CodeAssetWrite
		detail.Message = "Image could not be saved"
	case errors.Is(err, domain.ErrAssetDelete):
		detail.Code = CodeAssetDelete
		detail.Message = "Image could not be deleted"
	case errors.As(err, &persistErr):
		detail.Code = CodePersistence
		detail.Message = fmt.Sprintf("Changes could not be saved to %s", persistErr.File)
	}

	if errors.As(err, &assetErr) {
		if detail.Details == nil {
			detail.Details = map[string]interface{}{}
		}
		detail.Details["source"] = assetErr.Source
		if assetErr.Cause != nil {
			detail.Details["cause"] = assetErr.Cause.Error()
		}
	}

	return detail
}

func (c *CLI) printError(err error) {
	detail := describeError(err)

	if c.logger != nil && detail.Code == CodeInternal {
		c.logger.Error("Command failed", zap.Error(err))
	}

	if c.structured() {
		if perr := c.encode(c.errOut, ErrorResponse{Error: detail}); perr == nil {
			return
		}
	}

	errLabel.Fprint(c.errOut, "Error: ")
	fmt.Fprintln(c.errOut, detail.Message)
	if v, ok := detail.Details["validation_errors"].([]domain.ValidationError); ok {
		for _, e := range v {
			fmt.Fprintf(c.errOut, "  %s: %s\n", e.Field, e.Message)
		}
	}
}

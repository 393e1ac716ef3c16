package history

import "github.com/wangshicheng1995/phonetemp/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("history_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("history_invalid_db_path")

	// Record Errors
	ErrValidation = errors.ErrorCode("history_validation_failed")

	// Storage Errors
	ErrStorageInit        = errors.ErrorCode("history_storage_init_failed")
	ErrStorageAccess      = errors.ErrorCode("history_storage_access_failed")
	ErrStorageClose       = errors.ErrorCode("history_storage_close_failed")
	ErrStorageUnavailable = errors.ErrorCode("history_storage_unavailable")
	ErrSchemaInitFailed   = errors.ErrorCode("history_schema_init_failed")

	// Export Errors
	ErrExportFailed = errors.ErrorCode("history_export_failed")
)

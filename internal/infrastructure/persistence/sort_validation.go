package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// Common allowed sort fields for entities with base fields
// These are the common fields present in most entities

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// UserSortFields contains allowed sort fields for users
var UserSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"username":      true,
	"email":         true,
	"display_name":  true,
	"status":        true,
	"role":          true,
	"last_login_at": true,
}

// TenantSortFields contains allowed sort fields for tenants
var TenantSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
	"short_name": true,
	"status":     true,
	"plan":       true,
	"expires_at": true,
}

// OCRJobSortFields contains allowed sort fields for OCR jobs
var OCRJobSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"original_filename": true,
	"content_type":      true,
	"size_bytes":        true,
	"status":            true,
	"page_count":        true,
	"started_at":        true,
	"completed_at":      true,
}

// DocumentAnalysisSortFields contains allowed sort fields for document analyses
var DocumentAnalysisSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"kind":         true,
	"status":       true,
	"confidence":   true,
	"started_at":   true,
	"completed_at": true,
}

// FormTemplateSortFields contains allowed sort fields for form templates
var FormTemplateSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
	"status":     true,
	"paper_size": true,
}

// GeneratedFormSortFields contains allowed sort fields for generated forms
var GeneratedFormSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"template_code": true,
	"status":        true,
	"page_count":    true,
	"completed_at":  true,
}

package event

import (
	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/identity"
	"github.com/documind/backend/internal/domain/metering"
)

// RegisterAllEvents registers all domain event types with the serializer
// This is required for the OutboxProcessor to deserialize events from the outbox table
func RegisterAllEvents(serializer *EventSerializer) {
	// Metering domain - usage account events
	serializer.Register(metering.EventTypeUsageAccountCreated, &metering.UsageAccountCreatedEvent{})
	serializer.Register(metering.EventTypeUsageRecorded, &metering.UsageRecordedEvent{})
	serializer.Register(metering.EventTypeQuotaExhausted, &metering.QuotaExhaustedEvent{})
	serializer.Register(metering.EventTypePeriodRolledOver, &metering.PeriodRolledOverEvent{})
	serializer.Register(metering.EventTypePlanChanged, &metering.PlanChangedEvent{})

	// Document domain - OCR job events
	serializer.Register(document.EventTypeOCRJobSubmitted, &document.OCRJobSubmittedEvent{})
	serializer.Register(document.EventTypeOCRJobCompleted, &document.OCRJobCompletedEvent{})
	serializer.Register(document.EventTypeOCRJobFailed, &document.OCRJobFailedEvent{})

	// Document domain - analysis events
	serializer.Register(document.EventTypeAnalysisRequested, &document.AnalysisRequestedEvent{})
	serializer.Register(document.EventTypeAnalysisCompleted, &document.AnalysisCompletedEvent{})
	serializer.Register(document.EventTypeAnalysisFailed, &document.AnalysisFailedEvent{})

	// Document domain - form template and generated form events
	serializer.Register(document.EventTypeFormTemplateCreated, &document.FormTemplateCreatedEvent{})
	serializer.Register(document.EventTypeFormTemplateUpdated, &document.FormTemplateUpdatedEvent{})
	serializer.Register(document.EventTypeFormRequested, &document.FormRequestedEvent{})
	serializer.Register(document.EventTypeFormCompleted, &document.FormCompletedEvent{})
	serializer.Register(document.EventTypeFormFailed, &document.FormFailedEvent{})

	// Identity domain - tenant events
	serializer.Register(identity.EventTypeTenantCreated, &identity.TenantCreatedEvent{})
	serializer.Register(identity.EventTypeTenantUpdated, &identity.TenantUpdatedEvent{})
	serializer.Register(identity.EventTypeTenantStatusChanged, &identity.TenantStatusChangedEvent{})
	serializer.Register(identity.EventTypeTenantPlanChanged, &identity.TenantPlanChangedEvent{})
	serializer.Register(identity.EventTypeTenantDeleted, &identity.TenantDeletedEvent{})

	// Identity domain - user events
	serializer.Register(identity.EventTypeUserCreated, &identity.UserCreatedEvent{})
	serializer.Register(identity.EventTypeUserDeactivated, &identity.UserDeactivatedEvent{})
	serializer.Register(identity.EventTypeUserPasswordChanged, &identity.UserPasswordChangedEvent{})
	serializer.Register(identity.EventTypeUserRoleChanged, &identity.UserRoleChangedEvent{})
	serializer.Register(identity.EventTypeUserStatusChanged, &identity.UserStatusChangedEvent{})
}

// Package metering provides the usage-quota accounting domain for the
// multi-tenant document platform.
//
// This package implements the metering bounded context, which is responsible
// for:
//   - Tracking each tenant's current-month consumption of metered resource
//     kinds (document analysis, form generation, OCR) against plan limits
//   - Enforcing quota checks before metered actions are performed
//   - Rolling finished accounting periods into an archived history
//   - Auditing subscription plan changes
//
// Key Aggregates:
//   - UsageAccount: One per tenant; the quota-accounting state machine
//   - UsageEvent: Immutable record of a single successful metered action
//
// The metering domain never reads wall-clock time for period decisions; the
// current time and period key are always supplied by the caller so the
// accounting logic stays deterministic and testable.
package metering

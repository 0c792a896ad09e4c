// Package document contains the Document Processing bounded context.
// This context is responsible for the metered document operations: OCR
// jobs over uploaded files, document analyses (classification, data
// extraction, summarization), and PDF form generation from tenant
// templates. The engines that perform the work are opaque ports; this
// package models the jobs, their lifecycles, and the form templates.
package document

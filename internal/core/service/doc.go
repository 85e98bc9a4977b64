// Package service provides domain services for TillVault.
//
// Domain services contain the business logic of the shop and
// orchestrate operations on domain models through the record store.
//
// This package contains:
//
//   - SaleService: the sale ledger, recording, reversal, queries,
//     and summaries
//   - ProductService: catalog management and stock adjustments
//   - AuditService: the append-only audit trail
//   - SettingsService: the single-row shop settings record
//
// Services are stateless apart from their injected dependencies and
// safe for concurrent use.
package service

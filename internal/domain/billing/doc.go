// Package billing contains the billing ledger domain: purchase events,
// ledger periods, invoices with their line items, and the export artifact
// cache entries derived from them.
package billing

package models

// BalanceEntry is one row of the balance ledger for a manifest ID. An ID may
// have several entries, one per pending settlement.
type BalanceEntry struct {
	Available   float64 `json:"available"`
	Pending     float64 `json:"pending"`
	NextPayment string  `json:"nextPayment"`
}

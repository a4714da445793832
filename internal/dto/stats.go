package dto

import "github.com/shopspring/decimal"

// MonthStats aggregates orders created within one calendar month.
type MonthStats struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// StatsResponse is the admin dashboard aggregate: a status histogram plus
// month-over-month deltas for order count and amount.
type StatsResponse struct {
	StatusCounts  map[string]int  `json:"status_counts"`
	CurrentMonth  MonthStats      `json:"current_month"`
	PreviousMonth MonthStats      `json:"previous_month"`
	CountDelta    int             `json:"count_delta"`
	AmountDelta   decimal.Decimal `json:"amount_delta"`
}

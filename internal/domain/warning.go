package domain

import "time"

// WarningCode is the closed set of non-fatal data-quality conditions the
// pipeline accumulates instead of aborting.
type WarningCode string

const (
	WarnMalformedTransaction WarningCode = "MalformedTransaction"
	WarnInsufficientBalance  WarningCode = "InsufficientBalance"
	WarnUnknownCategory      WarningCode = "UnknownCategory"
	WarnUnmatchedSwap        WarningCode = "UnmatchedSwap"
	WarnPriceUnavailable     WarningCode = "PriceUnavailable"
)

// Warning records a degraded-but-continued condition so callers can audit
// input data quality after a run.
type Warning struct {
	Code    WarningCode `json:"code"`
	TxID    string      `json:"txId,omitempty"`
	Date    time.Time   `json:"date,omitempty"`
	Message string      `json:"message"`
}

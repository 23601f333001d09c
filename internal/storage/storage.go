// Package storage defines the persistence boundary: a key to JSON-value
// store. The core never assumes a specific backing medium; WAL and plain
// filesystem backends are interchangeable.
package storage

// Well-known store keys.
const (
	KeyLedgerState = "ledger_state"
	KeyPriceCache  = "price_cache"
	KeyTaxRows     = "tax_rows"
	KeyWarnings    = "warnings"
)

// Store persists JSON-serializable values by key.
type Store interface {
	// Save marshals value and persists it under key, replacing any
	// previous value.
	Save(key string, value any) error
	// Load unmarshals the latest value stored under key into out. The
	// bool is false when the key has never been saved.
	Load(key string, out any) (bool, error)
	Close() error
}

package normalize

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/chainledger/internal/domain"
)

func TestParseOrdersByDateKeepingInputOrderOnTies(t *testing.T) {
	payload := []byte(`[
		{"id": "c", "date": "2023-03-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]},
		{"id": "a", "date": "2023-01-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]},
		{"id": "b", "date": "2023-01-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]}
	]`)

	txs, warnings, err := Parse(payload, nil)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, txs, 3)
	require.Equal(t, "a", txs[0].ID)
	require.Equal(t, "b", txs[1].ID)
	require.Equal(t, "c", txs[2].ID)
}

func TestParseSkipsMalformedTransactionsWithWarning(t *testing.T) {
	payload := []byte(`[
		{"id": "good", "date": "2023-01-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]},
		{"id": "no-date", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]},
		{"id": "bad-amount", "date": "2023-01-02", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "one", "category": "Income"}
		]},
		{"id": "negative", "date": "2023-01-03", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "-1", "category": "Income"}
		]},
		{"id": "empty", "date": "2023-01-04", "transfers": []}
	]`)

	txs, warnings, err := Parse(payload, nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "good", txs[0].ID)
	require.Len(t, warnings, 4)
	for _, w := range warnings {
		require.Equal(t, domain.WarnMalformedTransaction, w.Code)
	}
}

func TestParseAcceptsBothDateFormats(t *testing.T) {
	payload := []byte(`[
		{"id": "day", "date": "2023-06-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]},
		{"id": "rfc", "date": "2023-06-01T15:04:05Z", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]}
	]`)

	txs, warnings, err := Parse(payload, nil)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, txs, 2)
	require.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), txs[0].Date)
	require.Equal(t, time.Date(2023, 6, 1, 15, 4, 5, 0, time.UTC), txs[1].Date)
}

func TestParsePreservesUnknownCategories(t *testing.T) {
	payload := []byte(`[
		{"id": "odd", "date": "2023-01-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Airdrop?"}
		]}
	]`)

	txs, warnings, err := Parse(payload, nil)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, txs, 1)
	require.Equal(t, domain.CategoryUnknown, txs[0].Transfers[0].Category)
}

func TestParseAssignsIDsWhenMissing(t *testing.T) {
	payload := []byte(`[
		{"date": "2023-01-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]}
	]`)

	txs, _, err := Parse(payload, nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NotEmpty(t, txs[0].ID)
}

func TestParseKeepsDecimalPrecision(t *testing.T) {
	payload := []byte(`[
		{"id": "x", "date": "2023-01-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "0.123456789012345678", "category": "Income"}
		]}
	]`)

	txs, _, err := Parse(payload, nil)
	require.NoError(t, err)
	want := decimal.RequireFromString("0.123456789012345678")
	require.True(t, txs[0].Transfers[0].Amount.Equal(want))
}

func TestParseRejectsNonArrayPayload(t *testing.T) {
	_, _, err := Parse([]byte(`{"not": "an array"}`), nil)
	require.Error(t, err)
}

func TestFileReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "x", "date": "2023-01-01", "transfers": [
			{"from": "a", "to": "b", "asset": "ETH", "amount": "1", "category": "Income"}
		]}
	]`), 0o644))

	txs, warnings, err := File(path, nil)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, txs, 1)

	_, _, err = File(filepath.Join(dir, "missing.json"), nil)
	require.Error(t, err)
}

// Package normalize decodes externally produced transaction files into the
// ledger's input form. All validation happens here: the fold itself trusts
// its input.
package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/chainledger/internal/domain"
)

type rawTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
}

type rawTransaction struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	Source    string        `json:"source"`
	Transfers []rawTransfer `json:"transfers"`
}

// File reads and normalizes a transaction file.
func File(path string, log *zap.Logger) ([]domain.Transaction, []domain.Warning, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read transactions file %s", path)
	}
	return Parse(payload, log)
}

// Parse decodes a JSON array of transactions. Malformed transactions are
// skipped with a warning; the rest are returned sorted by date, ties broken
// by input position, so the ledger sees a total order.
func Parse(payload []byte, log *zap.Logger) ([]domain.Transaction, []domain.Warning, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("normalize")

	var raw []rawTransaction
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "decode transactions")
	}

	var txs []domain.Transaction
	var warnings []domain.Warning

	for i, rt := range raw {
		tx, err := normalizeOne(rt, i)
		if err != nil {
			log.Warn("skipping malformed transaction",
				zap.Int("position", i), zap.String("id", rt.ID), zap.Error(err))
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarnMalformedTransaction,
				TxID:    rt.ID,
				Message: fmt.Sprintf("transaction at position %d skipped: %v", i, err),
			})
			continue
		}
		txs = append(txs, tx)
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].Index < txs[j].Index
	})
	return txs, warnings, nil
}

func normalizeOne(rt rawTransaction, position int) (domain.Transaction, error) {
	date, err := parseDate(rt.Date)
	if err != nil {
		return domain.Transaction{}, err
	}
	if len(rt.Transfers) == 0 {
		return domain.Transaction{}, errors.New("transaction has no transfers")
	}

	id := rt.ID
	if id == "" {
		id = uuid.New().String()
	}

	tx := domain.Transaction{
		ID:        id,
		Date:      date,
		Index:     position,
		Source:    rt.Source,
		Transfers: make([]domain.Transfer, 0, len(rt.Transfers)),
	}
	for i, rx := range rt.Transfers {
		x, err := normalizeTransfer(rx)
		if err != nil {
			return domain.Transaction{}, errors.Wrapf(err, "transfer %d", i)
		}
		tx.Transfers = append(tx.Transfers, x)
	}
	return tx, nil
}

func normalizeTransfer(rx rawTransfer) (domain.Transfer, error) {
	if rx.Asset == "" {
		return domain.Transfer{}, errors.New("missing asset")
	}
	if rx.From == "" || rx.To == "" {
		return domain.Transfer{}, errors.New("missing counterparty account")
	}
	amount, err := decimal.NewFromString(rx.Amount)
	if err != nil {
		return domain.Transfer{}, errors.Wrapf(err, "amount %q is not a decimal string", rx.Amount)
	}
	if amount.IsNegative() {
		return domain.Transfer{}, errors.Errorf("amount %s is negative", amount)
	}

	category := domain.TransferCategory(rx.Category)
	if !category.Valid() {
		// Unknown categories are preserved, not rejected: the ledger
		// warns but keeps the transaction visible downstream.
		category = domain.CategoryUnknown
	}
	return domain.Transfer{
		From:     rx.From,
		To:       rx.To,
		Asset:    rx.Asset,
		Amount:   amount,
		Category: category,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing date")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.Errorf("date %q is not ISO-8601", raw)
}

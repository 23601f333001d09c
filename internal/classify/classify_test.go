package classify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/chainledger/internal/addressbook"
	"github.com/vadiminshakov/chainledger/internal/domain"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	book, err := addressbook.New([]addressbook.Entry{
		{Address: "USA/wallet", Category: addressbook.CategorySelf, Guard: "USA"},
		{Address: "DEU/wallet", Category: addressbook.CategorySelf, Guard: "DEU"},
	})
	require.NoError(t, err)
	return New(book, nil)
}

func testTx(transfers ...domain.Transfer) domain.Transaction {
	return domain.Transaction{
		ID:        "tx-1",
		Date:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Transfers: transfers,
	}
}

func outcomes(transfers ...domain.Transfer) []Outcome {
	out := make([]Outcome, len(transfers))
	for i, x := range transfers {
		out[i] = Outcome{Transfer: x}
	}
	return out
}

func TestFeeBecomesExpenseEvent(t *testing.T) {
	c := testClassifier(t)
	fee := domain.Transfer{
		From: "USA/wallet", To: "miner", Asset: "ETH",
		Amount: decimal.RequireFromString("0.002"), Category: domain.CategoryFee,
	}

	events, warnings := c.Classify(testTx(fee), outcomes(fee), 0)
	require.Empty(t, warnings)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventExpense, events[0].Type)
	require.Equal(t, "USA/wallet", events[0].Account)
}

func TestPairedSwapsCollapseIntoOneTrade(t *testing.T) {
	c := testClassifier(t)
	out := domain.Transfer{
		From: "USA/wallet", To: "uniswap", Asset: "ETH",
		Amount: decimal.NewFromInt(1), Category: domain.CategorySwapOut,
	}
	in := domain.Transfer{
		From: "uniswap", To: "USA/wallet", Asset: "DAI",
		Amount: decimal.NewFromInt(2000), Category: domain.CategorySwapIn,
	}

	events, warnings := c.Classify(testTx(out, in), []Outcome{
		{Transfer: out, Consumed: []domain.ChunkIndex{0}},
		{Transfer: in, Created: []domain.ChunkIndex{1}},
	}, 0)
	require.Empty(t, warnings)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventTrade, events[0].Type)
	require.Equal(t, "DAI", events[0].Asset)
	require.Equal(t, []domain.ChunkIndex{0}, events[0].Outputs)
	require.Equal(t, []domain.ChunkIndex{1}, events[0].Inputs)
}

func TestOrphanSwapInDegradesToIncome(t *testing.T) {
	c := testClassifier(t)
	in := domain.Transfer{
		From: "uniswap", To: "USA/wallet", Asset: "DAI",
		Amount: decimal.NewFromInt(2000), Category: domain.CategorySwapIn,
	}

	events, warnings := c.Classify(testTx(in), outcomes(in), 0)
	require.Len(t, warnings, 1)
	require.Equal(t, domain.WarnUnmatchedSwap, warnings[0].Code)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventIncome, events[0].Type)
}

func TestOrphanSwapOutDegradesToExpense(t *testing.T) {
	c := testClassifier(t)
	out := domain.Transfer{
		From: "USA/wallet", To: "uniswap", Asset: "ETH",
		Amount: decimal.NewFromInt(1), Category: domain.CategorySwapOut,
	}

	events, warnings := c.Classify(testTx(out), outcomes(out), 0)
	require.Len(t, warnings, 1)
	require.Equal(t, domain.WarnUnmatchedSwap, warnings[0].Code)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventExpense, events[0].Type)
}

func TestSameGuardMoveIsSilent(t *testing.T) {
	c := testClassifier(t)
	move := domain.Transfer{
		From: "USA/wallet", To: "USA/wallet", Asset: "ETH",
		Amount: decimal.NewFromInt(1), Category: domain.CategoryInternal,
	}

	events, warnings := c.Classify(testTx(move), outcomes(move), 0)
	require.Empty(t, events)
	require.Empty(t, warnings)
}

func TestCrossGuardMoveEmitsGuardChange(t *testing.T) {
	c := testClassifier(t)
	move := domain.Transfer{
		From: "USA/wallet", To: "DEU/wallet", Asset: "ETH",
		Amount: decimal.NewFromInt(1), Category: domain.CategoryInternal,
	}

	events, warnings := c.Classify(testTx(move), outcomes(move), 0)
	require.Empty(t, warnings)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventGuardChange, events[0].Type)
	require.Equal(t, "USA", events[0].FromGuard)
	require.Equal(t, "DEU", events[0].ToGuard)
}

func TestUnknownCategoryWarns(t *testing.T) {
	c := testClassifier(t)
	odd := domain.Transfer{
		From: "USA/wallet", To: "somewhere", Asset: "ETH",
		Amount: decimal.NewFromInt(1), Category: domain.CategoryUnknown,
	}

	events, warnings := c.Classify(testTx(odd), outcomes(odd), 0)
	require.Empty(t, events)
	require.Len(t, warnings, 1)
	require.Equal(t, domain.WarnUnknownCategory, warnings[0].Code)
}

func TestEventIndicesContinueFromOffset(t *testing.T) {
	c := testClassifier(t)
	income := domain.Transfer{
		From: "employer", To: "USA/wallet", Asset: "ETH",
		Amount: decimal.NewFromInt(1), Category: domain.CategoryIncome,
	}
	fee := domain.Transfer{
		From: "USA/wallet", To: "miner", Asset: "ETH",
		Amount: decimal.RequireFromString("0.01"), Category: domain.CategoryFee,
	}

	events, _ := c.Classify(testTx(income, fee), outcomes(income, fee), 7)
	require.Len(t, events, 2)
	require.Equal(t, 7, events[0].Index)
	require.Equal(t, 8, events[1].Index)
}

// Package addressbook categorizes the accounts that appear in transfers and
// resolves which jurisdiction guard an account belongs to.
package addressbook

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Category is the closed set of account kinds the classifier dispatches on.
type Category string

const (
	// CategorySelf is an account we own; its value is tracked by the ledger.
	CategorySelf Category = "Self"
	// CategoryExchange is a venue account holding value on our behalf.
	CategoryExchange Category = "Exchange"
	// CategoryDefi is a protocol position (lending pool, AMM, vault).
	CategoryDefi Category = "Defi"
	// CategoryBurn is an address value never comes back from.
	CategoryBurn Category = "Burn"
	// CategoryPublic is any external counterparty we know nothing about.
	CategoryPublic Category = "Public"
)

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategorySelf, CategoryExchange, CategoryDefi, CategoryBurn, CategoryPublic:
		return true
	}
	return false
}

// Entry describes one known account.
type Entry struct {
	Address  string   `json:"address" yaml:"address"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Category Category `json:"category" yaml:"category"`
	Guard    string   `json:"guard,omitempty" yaml:"guard,omitempty"`
}

// Book maps accounts to categories and guards. Unknown accounts are Public
// with an empty guard, so lookups never fail mid-fold.
type Book struct {
	entries map[string]Entry
}

// New builds a book from config entries. EVM hex addresses are normalized to
// their EIP-55 checksum form so lookups are case-insensitive.
func New(entries []Entry) (*Book, error) {
	book := &Book{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Address == "" {
			return nil, errors.New("address book entry without address")
		}
		if !e.Category.Valid() {
			return nil, errors.Errorf("address book entry %s has unknown category %q", e.Address, e.Category)
		}
		book.entries[normalize(e.Address)] = e
	}
	return book, nil
}

func normalize(account string) string {
	guard, addr := splitGuard(account)
	if common.IsHexAddress(addr) {
		addr = common.HexToAddress(addr).Hex()
	}
	if guard == "" {
		return addr
	}
	return guard + "/" + addr
}

// splitGuard separates the optional "Guard/" prefix from the raw address.
func splitGuard(account string) (guard, addr string) {
	if i := strings.IndexByte(account, '/'); i >= 0 {
		return account[:i], account[i+1:]
	}
	return "", account
}

// Lookup returns the entry for an account, defaulting to Public.
func (b *Book) Lookup(account string) Entry {
	if e, ok := b.entries[normalize(account)]; ok {
		return e
	}
	return Entry{Address: account, Category: CategoryPublic}
}

// CategoryOf returns the category of an account.
func (b *Book) CategoryOf(account string) Category {
	return b.Lookup(account).Category
}

// IsSelf reports whether an account's value is tracked by the ledger.
// Exchange and Defi accounts hold value on our behalf, so they count.
func (b *Book) IsSelf(account string) bool {
	switch b.CategoryOf(account) {
	case CategorySelf, CategoryExchange, CategoryDefi:
		return true
	}
	return false
}

// GuardOf resolves the jurisdiction guard of an account: an explicit book
// entry wins, otherwise the prefix before "/" in the account string.
func (b *Book) GuardOf(account string) string {
	if e, ok := b.entries[normalize(account)]; ok && e.Guard != "" {
		return e.Guard
	}
	guard, _ := splitGuard(account)
	return guard
}

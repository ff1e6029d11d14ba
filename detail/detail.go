// Package detail reconciles the shapes spending line items have been stored in
// over time into one display bundle.
//
// Records carry some mix of a ledger reference, a free-text sub-ledger, product
// fields and service fields. Normalize applies a fixed list of rules in order
// and derives the display mode from what is left. The result is deterministic
// and normalizing a normalized record changes nothing.
package detail

import (
	"slices"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeLedger  Mode = "ledger"
	ModeProduct Mode = "product"
	ModeService Mode = "service"
	ModeUnknown Mode = "unknown"
)

const (
	categoryProduct = "product"
	categoryService = "service"
)

// ArchivedLedgerName is shown for references to a ledger that no longer resolves.
const ArchivedLedgerName = "Archived Ledger"

type Input struct {
	Category     string
	LedgerID     uuid.NullUUID
	LedgerName   string
	Catalog      []string
	SubLedger    string
	ProductName  string
	PaidToPerson string
	PaidToPlace  string
}

type Bundle struct {
	Mode         Mode   `json:"detail_mode"`
	LedgerName   string `json:"ledger_name"`
	SubLedger    string `json:"sub_ledger"`
	ProductName  string `json:"product_name"`
	PaidToPerson string `json:"paid_to_person"`
	PaidToPlace  string `json:"paid_to_place"`
}

// rule rewrites the bundle in place given the original input.
type rule func(in Input, b *Bundle)

var rules = []rule{
	subLedgerAsLegacyProduct,
	subLedgerOutsideCatalog,
	bareSubLedgerAsProduct,
}

func Normalize(in Input) Bundle {
	b := Bundle{
		SubLedger:    in.SubLedger,
		ProductName:  in.ProductName,
		PaidToPerson: in.PaidToPerson,
		PaidToPlace:  in.PaidToPlace,
	}
	for _, r := range rules {
		r(in, &b)
	}
	b.Mode = resolveMode(in, b)
	b.LedgerName = ledgerDisplayName(in)
	return b
}

func hasLedgerReference(in Input) bool {
	return in.LedgerID.Valid || in.LedgerName != ""
}

func hasPaidTo(b Bundle) bool {
	return b.PaidToPerson != "" || b.PaidToPlace != ""
}

// subLedgerAsLegacyProduct handles product spendings that were filed with the
// product name in the sub-ledger slot.
func subLedgerAsLegacyProduct(in Input, b *Bundle) {
	if !hasLedgerReference(in) || in.Category != categoryProduct {
		return
	}
	if b.ProductName == "" && b.SubLedger != "" {
		b.ProductName = b.SubLedger
		b.SubLedger = ""
	}
}

// subLedgerOutsideCatalog moves a sub-ledger the catalog doesn't list into
// the product name slot, if that slot is free.
func subLedgerOutsideCatalog(in Input, b *Bundle) {
	if !hasLedgerReference(in) || b.SubLedger == "" || len(in.Catalog) == 0 {
		return
	}
	if slices.Contains(in.Catalog, b.SubLedger) {
		return
	}
	if b.ProductName == "" {
		b.ProductName = b.SubLedger
	}
	b.SubLedger = ""
}

// bareSubLedgerAsProduct covers the oldest records, which only had a free-text
// sub-ledger.
func bareSubLedgerAsProduct(in Input, b *Bundle) {
	if hasLedgerReference(in) || in.Category != "" || b.ProductName != "" || hasPaidTo(*b) {
		return
	}
	if b.SubLedger != "" {
		b.ProductName = b.SubLedger
		b.SubLedger = ""
	}
}

func resolveMode(in Input, b Bundle) Mode {
	switch {
	case hasLedgerReference(in):
		return ModeLedger
	case in.Category == categoryService || hasPaidTo(b):
		return ModeService
	case in.Category == categoryProduct || b.ProductName != "":
		return ModeProduct
	default:
		return ModeUnknown
	}
}

func ledgerDisplayName(in Input) string {
	switch {
	case in.LedgerName != "":
		return in.LedgerName
	case in.LedgerID.Valid:
		return ArchivedLedgerName
	default:
		return ""
	}
}

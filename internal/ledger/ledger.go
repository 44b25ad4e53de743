// Package ledger computes net per-person balances from the shared bill
// history. It is pure: no storage, no session state.
package ledger

import (
	"time"

	"roomie/internal/core"
)

// SettleEpsilon is the band around zero treated as settled. It absorbs
// floating-point noise from uneven splits, nothing more.
const SettleEpsilon = 1.0

const (
	StandingOwed    Standing = "owed"
	StandingOwes    Standing = "owes"
	StandingSettled Standing = "settled"
)

// Standing classifies a balance for display.
type Standing string

// Balances computes the net position of every participant across the given
// bills. Positive means the participant is owed money, negative means they
// owe. For each bill the amount is split evenly across its debtors; a debtor
// equal to the payer transfers nothing, and bills with no debtors are skipped.
// Names outside the participant set (possible in legacy stored data) transfer
// nothing either, so the returned map only ever contains participants.
//
// The sum of all returned balances is always zero up to rounding: every debit
// writes a matching credit.
func Balances(bills []core.Bill, participants []string) map[string]float64 {
	balances := make(map[string]float64, len(participants))
	for _, p := range participants {
		balances[p] = 0
	}

	for _, bill := range bills {
		if len(bill.Debtors) == 0 {
			continue
		}
		share := bill.Share()
		if _, ok := balances[bill.Payer]; !ok {
			continue
		}
		for _, d := range bill.Debtors {
			if d == bill.Payer {
				continue
			}
			// Both sides skipped for unknown names, keeping the sum at zero.
			if _, ok := balances[d]; !ok {
				continue
			}
			balances[d] -= share
			balances[bill.Payer] += share
		}
	}

	return balances
}

// StandingOf maps a balance onto its display classification.
func StandingOf(balance float64) Standing {
	switch {
	case balance > SettleEpsilon:
		return StandingOwed
	case balance < -SettleEpsilon:
		return StandingOwes
	default:
		return StandingSettled
	}
}

// SettlementBill builds the bill that clears a debt by convention: the debtor
// pays the creditor directly and the creditor is the sole debtor of the new
// bill, so the next Balances call nets the pair out. Nothing records this
// automatically; the UI offers it as a hint and the user submits it like any
// other bill.
func SettlementBill(debtor, creditor string, amount float64, scope core.Context, date time.Time) core.Bill {
	return core.Bill{
		Date:        date.Format("2006-01-02"),
		Amount:      amount,
		Category:    core.CategoryDebtSettlement,
		Description: "Debt settlement: " + debtor + " pays " + creditor,
		Payer:       debtor,
		Debtors:     []string{creditor},
		Context:     scope,
	}
}

// Package ledger owns the consumable credit balance that gates every
// generation run, and the one-time welcome grant.
//
// The balance and the grant flag live in an OS-keychain-equivalent secure
// store rather than in plain preferences. Keychain entries survive ordinary
// data resets, so restoring an app sandbox from backup or deleting and
// reinstalling does not inflate the balance or farm welcome grants.
package ledger

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/book-expert/logger"

	"github.com/book-expert/storybook-service/internal/core"
)

// Secure store keys. The grant flag's truth value is the existence of its
// key, not the stored content.
const (
	balanceKey      = "credits.balance"
	welcomeGrantKey = "credits.welcome_grant.v1"
)

// WelcomeGrantAmount is the number of credits granted on first-ever
// initialization of an installation.
const WelcomeGrantAmount = 1

const pagesPerCredit = 10

// Static errors.
var (
	ErrAmountNegative = errors.New("amount cannot be negative")
	ErrUnknownProduct = errors.New("unknown product")
)

// productCredits maps store product identifiers to the credits they deliver.
var productCredits = map[string]int{
	"com.bookexpert.credits.3":   3,
	"com.bookexpert.credits.10":  10,
	"com.bookexpert.credits.25":  25,
	"com.bookexpert.credits.50":  50,
	"com.bookexpert.credits.100": 100,
}

// Ledger is the single authority over the credit balance. The in-memory
// balance is authoritative for the session; every mutation is persisted
// immediately and the next Initialize reconciles from the secure store.
type Ledger struct {
	store    core.SecretStore
	notifier core.Notifier
	log      *logger.Logger
	balance  int
}

// New creates a ledger backed by the given secure store. Initialize must be
// called before the ledger is used.
func New(store core.SecretStore, notifier core.Notifier, log *logger.Logger) *Ledger {
	return &Ledger{
		store:    store,
		notifier: notifier,
		log:      log,
		balance:  0,
	}
}

// Initialize loads the persisted balance and applies the welcome grant if it
// has never been given to this installation identity. The grant check relies
// on key existence in the secure store, so clearing conventional preferences
// does not re-arm it.
func (l *Ledger) Initialize() error {
	loadErr := l.loadBalance()
	if loadErr != nil {
		return loadErr
	}

	_, granted, grantErr := l.store.Get(welcomeGrantKey)
	if grantErr != nil {
		return fmt.Errorf("failed to read welcome grant flag: %w", grantErr)
	}

	if granted {
		return nil
	}

	l.balance += WelcomeGrantAmount

	flagErr := l.store.Put(welcomeGrantKey, []byte("granted"))
	if flagErr != nil {
		return fmt.Errorf("%w: failed to set welcome grant flag: %w", core.ErrPersistence, flagErr)
	}

	persistErr := l.persistBalance()
	if persistErr != nil {
		return persistErr
	}

	l.log.Info("Welcome grant applied, balance is %d", l.balance)
	l.publishBalance(WelcomeGrantAmount)

	return nil
}

// Balance returns the current in-memory balance.
func (l *Ledger) Balance() int {
	return l.balance
}

// CanAfford reports whether the balance covers cost.
func (l *Ledger) CanAfford(cost int) bool {
	return cost >= 0 && l.balance >= cost
}

// Spend deducts amount from the balance. It fails with
// core.ErrInsufficientCredits and leaves the balance unchanged when the
// balance cannot cover the amount; the balance is never clamped below zero.
//
// A persistence failure is reported but the in-memory deduction stands; the
// next Initialize reconciles from the secure store.
func (l *Ledger) Spend(amount int) error {
	if amount < 0 {
		return ErrAmountNegative
	}

	if l.balance < amount {
		return fmt.Errorf("%w: balance %d, need %d", core.ErrInsufficientCredits, l.balance, amount)
	}

	l.balance -= amount
	l.publishBalance(-amount)

	persistErr := l.persistBalance()
	if persistErr != nil {
		l.log.Warn("Balance spend of %d not persisted: %v", amount, persistErr)

		return persistErr
	}

	return nil
}

// Credit adds amount to the balance. Used when an external purchase or grant
// is confirmed.
func (l *Ledger) Credit(amount int) error {
	if amount < 0 {
		return ErrAmountNegative
	}

	l.balance += amount
	l.publishBalance(amount)

	persistErr := l.persistBalance()
	if persistErr != nil {
		l.log.Warn("Balance credit of %d not persisted: %v", amount, persistErr)

		return persistErr
	}

	return nil
}

// DeliverProduct credits the balance for a confirmed store purchase. Receipt
// validation is the commerce layer's responsibility; the ledger only maps the
// product identifier to its credit amount.
func (l *Ledger) DeliverProduct(productID string) (int, error) {
	credits, ok := productCredits[productID]
	if !ok {
		return 0, fmt.Errorf("%w: '%s'", ErrUnknownProduct, productID)
	}

	creditErr := l.Credit(credits)
	if creditErr != nil {
		return credits, creditErr
	}

	return credits, nil
}

// CostForPages computes the credit cost of generating a story with the given
// page count. The cost is monotonically non-decreasing in the page count.
func CostForPages(pageCount int) int {
	cost := pageCount / pagesPerCredit
	if cost < 1 {
		return 1
	}

	return cost
}

func (l *Ledger) loadBalance() error {
	raw, ok, getErr := l.store.Get(balanceKey)
	if getErr != nil {
		return fmt.Errorf("failed to load balance: %w", getErr)
	}

	if !ok {
		l.balance = 0

		return nil
	}

	parsed, parseErr := strconv.Atoi(string(raw))
	if parseErr != nil || parsed < 0 {
		l.log.Warn("Stored balance '%s' is invalid, resetting to 0", string(raw))
		l.balance = 0

		return nil
	}

	l.balance = parsed

	return nil
}

func (l *Ledger) persistBalance() error {
	putErr := l.store.Put(balanceKey, []byte(strconv.Itoa(l.balance)))
	if putErr != nil {
		return fmt.Errorf("%w: failed to persist balance: %w", core.ErrPersistence, putErr)
	}

	return nil
}

func (l *Ledger) publishBalance(delta int) {
	if l.notifier == nil {
		return
	}

	l.notifier.PublishBalance(core.BalanceEvent{
		Header:  core.NewEventHeader(""),
		Balance: l.balance,
		Delta:   delta,
	})
}

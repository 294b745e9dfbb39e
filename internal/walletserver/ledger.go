// Package walletserver is an in-memory reference implementation of the
// signed transaction protocol's remote side. The conformance harness is
// exercised against it in end-to-end tests and local runs.
package walletserver

import (
	"sync"

	"github.com/spinforge/aleatest/internal/domain"
)

// Account holds one player's balances in cents.
type Account struct {
	RealBalance  domain.Cents
	BonusBalance domain.Cents
}

// processedTx records the first application of a transaction id: the amounts
// reported then, and the net effect on the real balance so a rollback can
// reverse it exactly.
type processedTx struct {
	txType     domain.TransactionType
	realAmount domain.Cents
	bet        *domain.AmountPart
	win        *domain.AmountPart
	effect     domain.Cents
}

// Ledger applies transactions to in-memory player accounts with
// server-side idempotency by transaction id.
type Ledger struct {
	mu        sync.Mutex
	accounts  map[string]*Account
	processed map[string]*processedTx
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts:  make(map[string]*Account),
		processed: make(map[string]*processedTx),
	}
}

// CreatePlayer registers a player with an initial real balance. Replaces
// any existing account with the same id.
func (l *Ledger) CreatePlayer(playerID string, initial domain.Cents) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[playerID] = &Account{RealBalance: initial}
}

// Balance returns a player's balances.
func (l *Ledger) Balance(playerID string) (*domain.BalanceResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[playerID]
	if !ok {
		return nil, domain.ErrNotFound("player", playerID)
	}
	return &domain.BalanceResponse{
		RealBalance:  acct.RealBalance,
		BonusBalance: acct.BonusBalance,
	}, nil
}

// Apply processes a BET/WIN/BET_WIN/ROLLBACK transaction. A duplicate id is
// not re-applied: the response reports the original amounts, the current
// balance, and isAlreadyProcessed=true.
func (l *Ledger) Apply(req *domain.TransactionRequest) (*domain.TransactionResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[req.Player.ID]
	if !ok {
		return nil, domain.ErrNotFound("player", req.Player.ID)
	}

	if prior, dup := l.processed[req.ID]; dup {
		return l.replayResponse(req.ID, prior, acct), nil
	}

	var rec *processedTx
	switch req.Type {
	case domain.TxBet:
		amount := derefAmount(req.Amount)
		if acct.RealBalance < amount {
			return nil, domain.ErrInsufficientBalance()
		}
		rec = &processedTx{txType: req.Type, realAmount: amount, effect: -amount}

	case domain.TxWin:
		amount := derefAmount(req.Amount)
		rec = &processedTx{txType: req.Type, realAmount: amount, effect: amount}

	case domain.TxBetWin:
		bet := partAmount(req.Bet)
		win := partAmount(req.Win)
		if acct.RealBalance < bet {
			return nil, domain.ErrInsufficientBalance()
		}
		rec = &processedTx{
			txType:     req.Type,
			realAmount: bet + win,
			bet:        &domain.AmountPart{Amount: bet},
			win:        &domain.AmountPart{Amount: win},
			effect:     -bet + win,
		}

	case domain.TxRollback:
		if req.Transaction == nil || req.Transaction.ID == "" {
			return nil, domain.ErrValidation("rollback requires transaction.id")
		}
		original, found := l.processed[req.Transaction.ID]
		if !found {
			return nil, domain.ErrTransactionNotFound(req.Transaction.ID)
		}
		effect := -original.effect
		rec = &processedTx{
			txType:     req.Type,
			realAmount: abs(effect),
			effect:     effect,
		}

	default:
		return nil, domain.ErrValidation("unknown transaction type: " + string(req.Type))
	}

	acct.RealBalance += rec.effect
	l.processed[req.ID] = rec

	return &domain.TransactionResponse{
		ID:           req.ID,
		RealAmount:   rec.realAmount,
		RealBalance:  acct.RealBalance,
		BonusBalance: acct.BonusBalance,
		Bet:          rec.bet,
		Win:          rec.win,
	}, nil
}

// ApplyPromo credits a PROMO_PAYOUT to the player. Idempotent by payout id.
func (l *Ledger) ApplyPromo(req *domain.PromoPayoutRequest) (*domain.TransactionResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[req.PlayerID]
	if !ok {
		return nil, domain.ErrNotFound("player", req.PlayerID)
	}

	if req.PromoType == domain.PromoTournament && req.Details.Place == nil {
		return nil, domain.ErrValidation("TOURNAMENT payout requires place")
	}

	if prior, dup := l.processed[req.ID]; dup {
		return l.replayResponse(req.ID, prior, acct), nil
	}

	amount := req.Details.Amount
	rec := &processedTx{txType: domain.TxPromoPayout, realAmount: amount, effect: amount}
	acct.RealBalance += amount
	l.processed[req.ID] = rec

	return &domain.TransactionResponse{
		ID:           req.ID,
		RealAmount:   amount,
		RealBalance:  acct.RealBalance,
		BonusBalance: acct.BonusBalance,
	}, nil
}

// replayResponse reports an already-processed transaction: original amounts,
// current balance, no side effect.
func (l *Ledger) replayResponse(id string, prior *processedTx, acct *Account) *domain.TransactionResponse {
	return &domain.TransactionResponse{
		ID:                 id,
		RealAmount:         prior.realAmount,
		RealBalance:        acct.RealBalance,
		BonusBalance:       acct.BonusBalance,
		IsAlreadyProcessed: true,
		Bet:                prior.bet,
		Win:                prior.win,
	}
}

func derefAmount(c *domain.Cents) domain.Cents {
	if c == nil {
		return 0
	}
	return *c
}

func partAmount(p *domain.AmountPart) domain.Cents {
	if p == nil {
		return 0
	}
	return p.Amount
}

func abs(c domain.Cents) domain.Cents {
	if c < 0 {
		return -c
	}
	return c
}

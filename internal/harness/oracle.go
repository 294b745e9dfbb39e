package harness

import "github.com/spinforge/aleatest/internal/domain"

// ExpectedBalance predicts the real balance after a transaction is applied,
// without consulting the remote system. This is the test's ground truth.
//
// Callers must only advance the running balance with this value after the
// HTTP response succeeded; a failed step leaves the balance untouched.
func ExpectedBalance(running domain.Cents, req *domain.TransactionRequest, alreadyProcessed bool) domain.Cents {
	if alreadyProcessed {
		// Idempotent replay: the remote did not re-apply the transaction.
		return running
	}

	switch req.Type {
	case domain.TxBet:
		return running - derefAmount(req.Amount)
	case domain.TxWin:
		return running + derefAmount(req.Amount)
	case domain.TxBetWin:
		return running - partAmount(req.Bet) + partAmount(req.Win)
	case domain.TxRollback:
		return running + rollbackEffect(req)
	}
	return running
}

// rollbackEffect is the sign-inverted effect of the referenced original.
func rollbackEffect(req *domain.TransactionRequest) domain.Cents {
	// When the original carried bet/win portions (BET_WIN, or a rollback of
	// one), invert both portions.
	if req.Bet != nil || req.Win != nil {
		return partAmount(req.Bet) - partAmount(req.Win)
	}

	switch req.OriginalRequestType {
	case domain.TxBet:
		return req.OriginalAmount
	case domain.TxWin:
		return -req.OriginalAmount
	case domain.TxRollback:
		// Rolling back a rollback re-applies the debit it had reversed.
		return -req.OriginalAmount
	}
	return 0
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

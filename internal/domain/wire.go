package domain

import (
	"encoding/json"
	"fmt"
)

// TransactionType enumerates the wire transaction types.
type TransactionType string

const (
	TxBet         TransactionType = "BET"
	TxWin         TransactionType = "WIN"
	TxBetWin      TransactionType = "BET_WIN"
	TxRollback    TransactionType = "ROLLBACK"
	TxPromoPayout TransactionType = "PROMO_PAYOUT"
)

// StepTypes lists the types a scenario step may use (PROMO_PAYOUT scenarios
// have their own step shape).
var StepTypes = map[TransactionType]bool{
	TxBet:      true,
	TxWin:      true,
	TxBetWin:   true,
	TxRollback: true,
}

// RoundStatus is the lifecycle state of a game round.
type RoundStatus string

const (
	RoundInProgress RoundStatus = "IN_PROGRESS"
	RoundCompleted  RoundStatus = "COMPLETED"
)

// Round groups the transactions (bet, win, rollback) of one game round.
type Round struct {
	ID                string      `json:"id"`
	IntegratorRoundID string      `json:"integratorRoundId"`
	Status            RoundStatus `json:"status,omitempty"`
}

// Clone returns a copy so stored rounds cannot be mutated through a request.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// EntityRef identifies a game, software, or integrator on the wire.
type EntityRef struct {
	ID string `json:"id"`
}

// PlayerRef identifies the casino player on the wire.
type PlayerRef struct {
	ID string `json:"id"`
}

// TransactionRef points a ROLLBACK at the transaction being reversed.
type TransactionRef struct {
	ID string `json:"id"`
}

// AmountPart is the bet or win portion of a BET_WIN transaction.
type AmountPart struct {
	Amount Cents `json:"amount"`
}

// TransactionRequest is the POST /transactions body. Only the tagged fields
// ever reach the wire; test-control data (signing secret override, rollback
// oracle metadata) is carried on untagged fields and dropped by the marshaler.
type TransactionRequest struct {
	ID                      string          `json:"id"`
	IntegratorTransactionID string          `json:"integratorTransactionId"`
	Type                    TransactionType `json:"type"`
	RequestedAt             string          `json:"requestedAt"`
	Game                    EntityRef       `json:"game"`
	Software                EntityRef       `json:"software"`
	Integrator              EntityRef       `json:"integrator"`
	Player                  PlayerRef       `json:"player"`
	Currency                string          `json:"currency"`
	CasinoSessionID         string          `json:"casinoSessionId"`
	Round                   *Round          `json:"round,omitempty"`
	Amount                  *Cents          `json:"amount,omitempty"`
	Transaction             *TransactionRef `json:"transaction,omitempty"`
	Bet                     *AmountPart     `json:"bet,omitempty"`
	Win                     *AmountPart     `json:"win,omitempty"`

	// Secret overrides the shared signing secret for this request only
	// (used to exercise invalid-signature paths). Never serialized.
	Secret string `json:"-"`

	// Rollback oracle metadata resolved from the referenced original.
	// Never serialized; the remote resolves the original itself.
	OriginalRequestType TransactionType `json:"-"`
	OriginalAmount      Cents           `json:"-"`
}

// TransactionResponse is the POST /transactions response body.
type TransactionResponse struct {
	ID                 string      `json:"id"`
	RealAmount         Cents       `json:"realAmount"`
	BonusAmount        Cents       `json:"bonusAmount"`
	RealBalance        Cents       `json:"realBalance"`
	BonusBalance       Cents       `json:"bonusBalance"`
	IsAlreadyProcessed bool        `json:"isAlreadyProcessed"`
	Bet                *AmountPart `json:"bet,omitempty"`
	Win                *AmountPart `json:"win,omitempty"`
}

// BalanceResponse is the GET balance response body.
type BalanceResponse struct {
	RealBalance  Cents `json:"realBalance"`
	BonusBalance Cents `json:"bonusBalance"`
}

// ErrorResponse is the error body returned by the stub wallet.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PromoType enumerates the PROMO_PAYOUT sub-types.
type PromoType string

const (
	PromoFreeSpin         PromoType = "FREE_SPIN"
	PromoPrize            PromoType = "PRIZE"
	PromoTournament       PromoType = "TOURNAMENT"
	PromoSpinGift         PromoType = "SPIN_GIFT"
	PromoCashback         PromoType = "CASHBACK"
	PromoOperatorFreeSpin PromoType = "OPERATOR_FREE_SPIN"
)

// promoDetailKeys maps each promo type to the JSON key its detail object
// lives under.
var promoDetailKeys = map[PromoType]string{
	PromoFreeSpin:         "freeSpin",
	PromoPrize:            "prize",
	PromoTournament:       "tournament",
	PromoSpinGift:         "spinGift",
	PromoCashback:         "cashback",
	PromoOperatorFreeSpin: "operatorFreeSpin",
}

// PromoDetailKey returns the wire key for a promo type's detail object.
func PromoDetailKey(p PromoType) (string, bool) {
	k, ok := promoDetailKeys[p]
	return k, ok
}

// PromoDetails is the promoType-keyed payload of a PROMO_PAYOUT.
type PromoDetails struct {
	CampaignID string `json:"campaignId"`
	GameID     string `json:"gameId"`
	Amount     Cents  `json:"amount"`
	Currency   string `json:"currency"`
	Place      *int   `json:"place,omitempty"`
}

// PromoPayoutRequest is the PROMO_PAYOUT variant of POST /transactions.
// The detail object is keyed by the promo type (freeSpin, prize, ...), so
// marshaling is done by hand.
type PromoPayoutRequest struct {
	ID          string
	PromoType   PromoType
	RequestedAt string
	PlayerID    string
	Details     PromoDetails

	// Same role as TransactionRequest.Secret.
	Secret string
}

func (p *PromoPayoutRequest) MarshalJSON() ([]byte, error) {
	key, ok := PromoDetailKey(p.PromoType)
	if !ok {
		return nil, fmt.Errorf("unknown promo type: %s", p.PromoType)
	}
	m := map[string]any{
		"id":          p.ID,
		"type":        string(TxPromoPayout),
		"promoType":   string(p.PromoType),
		"requestedAt": p.RequestedAt,
		"playerId":    p.PlayerID,
		key:           p.Details,
	}
	return json.Marshal(m)
}

func (p *PromoPayoutRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		Type        TransactionType `json:"type"`
		PromoType   PromoType       `json:"promoType"`
		RequestedAt string          `json:"requestedAt"`
		PlayerID    string          `json:"playerId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	key, ok := PromoDetailKey(raw.PromoType)
	if !ok {
		return fmt.Errorf("unknown promo type: %s", raw.PromoType)
	}

	var details map[string]json.RawMessage
	if err := json.Unmarshal(b, &details); err != nil {
		return err
	}
	p.ID = raw.ID
	p.PromoType = raw.PromoType
	p.RequestedAt = raw.RequestedAt
	p.PlayerID = raw.PlayerID
	if d, found := details[key]; found {
		if err := json.Unmarshal(d, &p.Details); err != nil {
			return fmt.Errorf("unmarshal %s details: %w", key, err)
		}
	}
	return nil
}

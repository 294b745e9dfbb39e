package harness

import (
	"fmt"
	"time"

	"github.com/spinforge/aleatest/internal/domain"
)

// PromoStep describes one PROMO_PAYOUT attempt. It follows the same signing
// contract as transactions but a distinct payload shape.
type PromoStep struct {
	PromoType  domain.PromoType
	CampaignID string
	GameID     string
	Amount     domain.Cents
	Place      *int
	Secret     string

	// ID pins the payout id; empty generates a fresh one (pin it to test
	// duplicate handling).
	ID string
}

// BuildPromoPayout constructs a PROMO_PAYOUT wire request from a promo step.
func (b *Builder) BuildPromoPayout(step PromoStep) (*domain.PromoPayoutRequest, error) {
	if _, ok := domain.PromoDetailKey(step.PromoType); !ok {
		return nil, domain.ErrSetup(fmt.Sprintf("unknown promo type: %s", step.PromoType))
	}
	if step.PromoType == domain.PromoTournament && step.Place == nil {
		return nil, domain.ErrSetup("TOURNAMENT promo payout requires place")
	}

	id := step.ID
	if id == "" {
		id = b.newTxID()
	}
	gameID := step.GameID
	if gameID == "" {
		gameID = b.defaults.GameID
	}

	return &domain.PromoPayoutRequest{
		ID:          id,
		PromoType:   step.PromoType,
		RequestedAt: b.now().UTC().Format(time.RFC3339),
		PlayerID:    b.defaults.PlayerID,
		Details: domain.PromoDetails{
			CampaignID: step.CampaignID,
			GameID:     gameID,
			Amount:     step.Amount,
			Currency:   b.defaults.Currency,
			Place:      step.Place,
		},
		Secret: step.Secret,
	}, nil
}

package walletserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spinforge/aleatest/internal/domain"
	"github.com/spinforge/aleatest/internal/sign"
)

// NewRouter builds the stub wallet chi.Router: the signed transaction
// endpoint and the signed balance lookup.
func NewRouter(ledger *Ledger, secret string, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("stub-wallet request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/transactions", TransactionHandler(ledger, secret, logger))
	r.Get("/brandId/{brandID}/players/{playerID}/balance", BalanceHandler(ledger, secret, logger))

	return r
}

// TransactionHandler verifies the Digest header, dispatches by transaction
// type, and responds with the ledger's result.
func TransactionHandler(ledger *Ledger, secret string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r, 1<<20)
		if err != nil {
			writeError(w, domain.ErrValidation("invalid request body"))
			return
		}

		if !verifyDigest(r, body, secret) {
			logger.Warn("transaction digest mismatch")
			writeError(w, domain.ErrUnauthorized("invalid signature"))
			return
		}

		var probe struct {
			Type domain.TransactionType `json:"type"`
		}
		if err := json.Unmarshal(body, &probe); err != nil {
			writeError(w, domain.ErrValidation("malformed transaction body"))
			return
		}

		var (
			resp   *domain.TransactionResponse
			appErr error
		)
		if probe.Type == domain.TxPromoPayout {
			var req domain.PromoPayoutRequest
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, domain.ErrValidation("malformed promo payout body"))
				return
			}
			logger.Info("promo payout",
				"id", req.ID,
				"promo_type", req.PromoType,
				"player_id", req.PlayerID,
				"amount", req.Details.Amount.String())
			resp, appErr = ledger.ApplyPromo(&req)
		} else {
			var req domain.TransactionRequest
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, domain.ErrValidation("malformed transaction body"))
				return
			}
			logger.Info("transaction",
				"id", req.ID,
				"type", req.Type,
				"player_id", req.Player.ID)
			resp, appErr = ledger.Apply(&req)
		}

		if appErr != nil {
			writeError(w, appErr)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// BalanceHandler verifies the five-parameter GET signature and returns the
// player's balances.
func BalanceHandler(ledger *Ledger, secret string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		expected := sign.BalanceQuery(
			q.Get("casinoSessionId"),
			q.Get("currency"),
			q.Get("gameId"),
			q.Get("softwareId"),
			q.Get("integratorId"),
			secret,
		)
		provided, ok := sign.ParseDigestHeader(r.Header.Get(sign.HeaderName))
		if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
			logger.Warn("balance digest mismatch")
			writeError(w, domain.ErrUnauthorized("invalid signature"))
			return
		}

		playerID := chi.URLParam(r, "playerID")
		bal, err := ledger.Balance(playerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bal)
	}
}

// verifyDigest recomputes the body digest and compares in constant time.
func verifyDigest(r *http.Request, body []byte, secret string) bool {
	provided, ok := sign.ParseDigestHeader(r.Header.Get(sign.HeaderName))
	if !ok {
		return false
	}
	expected := sign.Transaction(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

func readBody(r *http.Request, maxSize int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxSize)
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		appErr = domain.ErrInternal("internal error", err)
	}
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, domain.ErrorResponse{Code: appErr.Code, Message: appErr.Message})
}

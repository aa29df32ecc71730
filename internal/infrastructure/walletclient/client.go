package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainerrors "paymentcore.backend/internal/domain/errors"
	"paymentcore.backend/internal/usecases"
)

const identityHeader = "X-User-Id"

// Client drives a remote Wallet Ledger service over its HTTP surface.
// It satisfies usecases.WalletLedger, so the orchestrator doesn't care
// whether the ledger is in-process or a network hop away. Error
// responses carrying the standard envelope are mapped back onto the
// same error kinds the in-process ledger raises.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type reservePayload struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	PaymentID uuid.UUID       `json:"paymentId"`
}

type reserveResponse struct {
	WalletTransactionID uuid.UUID       `json:"walletTransactionId"`
	WalletID            uuid.UUID       `json:"walletId"`
	AmountReserved      decimal.Decimal `json:"amountReserved"`
	RemainingBalance    decimal.Decimal `json:"remainingBalance"`
}

func (c *Client) ReserveFunds(ctx context.Context, walletID, userID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*usecases.ReservationResult, error) {
	path := fmt.Sprintf("/api/v1/wallet/%s/reserve", walletID)
	body, err := c.post(ctx, path, userID, reservePayload{
		Amount:    amount,
		Currency:  currency,
		PaymentID: paymentID,
	})
	if err != nil {
		return nil, err
	}

	var resp reserveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("wallet ledger: decoding reserve response: %w", err)
	}
	return &usecases.ReservationResult{
		WalletTransactionID: resp.WalletTransactionID,
		WalletID:            resp.WalletID,
		AmountReserved:      resp.AmountReserved,
		RemainingBalance:    resp.RemainingBalance,
	}, nil
}

type confirmPayload struct {
	WalletTransactionID   uuid.UUID `json:"walletTransactionId"`
	ProviderTransactionID string    `json:"providerTransactionId,omitempty"`
	Provider              string    `json:"provider,omitempty"`
}

func (c *Client) ConfirmReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, provider string, userID uuid.UUID) error {
	path := fmt.Sprintf("/api/v1/wallet/%s/confirm", walletID)
	_, err := c.post(ctx, path, userID, confirmPayload{
		WalletTransactionID:   walletTransactionID,
		ProviderTransactionID: providerTransactionID,
		Provider:              provider,
	})
	return err
}

type cancelPayload struct {
	WalletTransactionID uuid.UUID `json:"walletTransactionId"`
}

func (c *Client) CancelReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, userID uuid.UUID) error {
	path := fmt.Sprintf("/api/v1/wallet/%s/cancel", walletID)
	_, err := c.post(ctx, path, userID, cancelPayload{WalletTransactionID: walletTransactionID})
	return err
}

// post sends one authenticated request and returns the response body
// for 2xx, or the reconstructed AppError otherwise.
func (c *Client) post(ctx context.Context, path string, userID uuid.UUID, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identityHeader, userID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wallet ledger: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wallet ledger: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domainerrors.ParseRemote(resp.StatusCode, body)
	}
	return body, nil
}

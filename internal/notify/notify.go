// Package notify отправляет события об изменениях балансов внешнему
// диспетчеру уведомлений. Отправка выполняется в режиме fire-and-forget:
// успех основной операции не зависит от доставки события.
package notify

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

// EventBalanceChanged отправляется при любом изменении баланса счёта.
const (
	EventBalanceChanged = "balance_changed"
	// EventCommissionPaid отправляется при выплате комиссии.
	EventCommissionPaid = "commission_paid"
)

// Event описывает одно событие платформы.
type Event struct {
	Type       string          `json:"type"`
	AccountID  int64           `json:"account_id"`
	SourceID   int64           `json:"source_id,omitempty"`
	Level      int             `json:"level,omitempty"`
	Currency   model.Currency  `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Dispatcher публикует события по HTTP на настроенный webhook.
type Dispatcher struct {
	url    string
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewDispatcher создаёт диспетчер событий. Пустой адрес webhook отключает отправку.
func NewDispatcher(url string, logger *zap.Logger) *Dispatcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil

	return &Dispatcher{
		url:    strings.TrimRight(url, "/"),
		client: client,
		logger: logger,
	}
}

// BalanceChanged публикует событие изменения баланса счёта.
func (d *Dispatcher) BalanceChanged(accountID int64, currency model.Currency, delta decimal.Decimal) {
	d.publish(Event{
		Type:       EventBalanceChanged,
		AccountID:  accountID,
		Currency:   currency,
		Amount:     delta,
		OccurredAt: time.Now().UTC(),
	})
}

// CommissionPaid публикует событие выплаты комиссии.
func (d *Dispatcher) CommissionPaid(accountID, sourceID int64, level int, currency model.Currency, amount decimal.Decimal) {
	d.publish(Event{
		Type:       EventCommissionPaid,
		AccountID:  accountID,
		SourceID:   sourceID,
		Level:      level,
		Currency:   currency,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})
}

func (d *Dispatcher) publish(e Event) {
	if d == nil || d.url == "" {
		return
	}

	go func() {
		body, err := json.Marshal(e)
		if err != nil {
			d.logger.Error("marshal event", zap.Error(err))
			return
		}

		resp, err := d.client.Post(d.url, "application/json", bytes.NewReader(body))
		if err != nil {
			d.logger.Warn("publish event failed",
				zap.String("type", e.Type),
				zap.Int64("accountID", e.AccountID),
				zap.Error(err),
			)
			return
		}
		resp.Body.Close()
	}()
}

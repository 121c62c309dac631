package mercadopago

import "time"

type PreferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
	PictureURL string  `json:"picture_url,omitempty"`
}

type Phone struct {
	Number string `json:"number"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type Payer struct {
	Name           string          `json:"name"`
	Surname        string          `json:"surname"`
	Email          string          `json:"email"`
	Phone          Phone           `json:"phone"`
	Identification *Identification `json:"identification,omitempty"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceRequest struct {
	Items               []PreferenceItem  `json:"items"`
	Payer               Payer             `json:"payer"`
	BackURLs            BackURLs          `json:"back_urls"`
	AutoReturn          string            `json:"auto_return,omitempty"`
	NotificationURL     string            `json:"notification_url,omitempty"`
	ExternalReference   string            `json:"external_reference"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Expires             bool              `json:"expires"`
	ExpirationDateFrom  *time.Time        `json:"expiration_date_from,omitempty"`
	ExpirationDateTo    *time.Time        `json:"expiration_date_to,omitempty"`
	StatementDescriptor string            `json:"statement_descriptor,omitempty"`
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment is the subset of the payments resource reconciliation reads.
// Metadata values come back as whatever JSON the preference carried.
type Payment struct {
	ID                int64                  `json:"id"`
	Status            string                 `json:"status"`
	StatusDetail      string                 `json:"status_detail"`
	TransactionAmount float64                `json:"transaction_amount"`
	ExternalReference string                 `json:"external_reference"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// MetadataString returns a metadata value as a string, or "" when absent.
func (p Payment) MetadataString(key string) string {
	v, ok := p.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

type Refund struct {
	ID        int64   `json:"id"`
	PaymentID int64   `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

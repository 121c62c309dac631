package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bikestore/internal/cart"
)

const (
	MetaOrderNumber      = "order_number"
	MetaCartItems        = "cart_items"
	MetaCustomerEmail    = "customer_email"
	MetaCustomerName     = "customer_name"
	MetaCustomerPhone    = "customer_phone"
	MetaCustomerDNI      = "customer_dni"
	MetaShippingAddress  = "shipping_address"
	MetaShippingCity     = "shipping_city"
	MetaShippingProvince = "shipping_province"
	MetaShippingZipCode  = "shipping_zipcode"
)

// ErrNoCartMetadata marks payments that were not created by checkout, such
// as test notifications fired from the provider dashboard.
var ErrNoCartMetadata = errors.New("payment has no cart metadata")

// PaymentMetadata is what rides along with the hosted payment session and
// comes back on the payment.
type PaymentMetadata struct {
	OrderNumber      string
	Items            []cart.Line
	CustomerEmail    string
	CustomerName     string
	CustomerPhone    string
	CustomerDNI      string
	ShippingAddress  string
	ShippingCity     string
	ShippingProvince string
	ShippingZipCode  string
}

type metadataItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

func (m PaymentMetadata) Encode() (map[string]string, error) {
	items := make([]metadataItem, 0, len(m.Items))
	for _, line := range m.Items {
		items = append(items, metadataItem{ID: line.ProductID, Quantity: line.Quantity})
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart metadata: %w", err)
	}

	return map[string]string{
		MetaOrderNumber:      m.OrderNumber,
		MetaCartItems:        string(encoded),
		MetaCustomerEmail:    m.CustomerEmail,
		MetaCustomerName:     m.CustomerName,
		MetaCustomerPhone:    m.CustomerPhone,
		MetaCustomerDNI:      m.CustomerDNI,
		MetaShippingAddress:  m.ShippingAddress,
		MetaShippingCity:     m.ShippingCity,
		MetaShippingProvince: m.ShippingProvince,
		MetaShippingZipCode:  m.ShippingZipCode,
	}, nil
}

// DecodeMetadata reads metadata back from a payment. Values arrive as
// arbitrary JSON, so non-string entries are ignored.
func DecodeMetadata(raw map[string]interface{}) (PaymentMetadata, error) {
	get := func(key string) string {
		if s, ok := raw[key].(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}

	cartItems := get(MetaCartItems)
	if cartItems == "" {
		return PaymentMetadata{}, ErrNoCartMetadata
	}

	var items []metadataItem
	if err := json.Unmarshal([]byte(cartItems), &items); err != nil {
		return PaymentMetadata{}, fmt.Errorf("decode cart metadata: %w", err)
	}

	lines := make([]cart.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, cart.Line{ProductID: item.ID, Quantity: item.Quantity})
	}
	lines, err := NormalizeLines(lines)
	if err != nil {
		return PaymentMetadata{}, fmt.Errorf("decode cart metadata: %w", err)
	}

	return PaymentMetadata{
		OrderNumber:      get(MetaOrderNumber),
		Items:            lines,
		CustomerEmail:    get(MetaCustomerEmail),
		CustomerName:     get(MetaCustomerName),
		CustomerPhone:    get(MetaCustomerPhone),
		CustomerDNI:      get(MetaCustomerDNI),
		ShippingAddress:  get(MetaShippingAddress),
		ShippingCity:     get(MetaShippingCity),
		ShippingProvince: get(MetaShippingProvince),
		ShippingZipCode:  get(MetaShippingZipCode),
	}, nil
}

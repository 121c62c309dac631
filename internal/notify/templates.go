package notify

import (
	"html/template"
	"sort"

	"github.com/shopspring/decimal"
)

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="font-family: Arial, sans-serif; background-color: #f8fafc; margin: 0; padding: 20px;">
<div style="max-width: 600px; margin: 0 auto; background-color: white; border-radius: 8px;">
<div style="background-color: {{.Accent}}; padding: 32px 20px; text-align: center;">
<h1 style="color: white; margin: 0;">{{.Title}}</h1>
</div>
<div style="padding: 32px 30px;">
<h2 style="margin-top: 0;">Hi {{.CustomerName}},</h2>
{{template "content" .}}
{{if .OrderURL}}<p style="text-align: center; margin: 32px 0;"><a href="{{.OrderURL}}" style="background-color: #3b82f6; color: white; padding: 14px 32px; border-radius: 6px; text-decoration: none;">View order</a></p>{{end}}
</div>
<div style="padding: 24px; text-align: center; border-top: 1px solid #e2e8f0; color: #94a3b8; font-size: 13px;">{{.StoreName}}</div>
</div>
</body>
</html>{{end}}`

const itemsTemplate = `{{define "items"}}<table style="width: 100%; border-collapse: collapse;">
{{range .Items}}<tr><td style="padding: 8px 0;">{{.Name}} x {{.Quantity}}</td><td style="text-align: right;">${{money .Subtotal}}</td></tr>
{{end}}<tr><td style="padding-top: 12px; font-weight: bold;">Total</td><td style="padding-top: 12px; text-align: right; font-weight: bold;">${{money .Total}}</td></tr>
</table>{{end}}`

var emailTemplates = map[string]string{
	purposeOrderConfirmation: `{{define "content"}}<p>We received order <strong>{{.OrderNumber}}</strong>. It is waiting for payment.</p>
{{template "items" .}}
{{if .PaymentInstructions}}<p>{{.PaymentInstructions}}</p>{{end}}{{end}}`,

	purposePaymentConfirmed: `{{define "content"}}<p>Your payment for order <strong>{{.OrderNumber}}</strong> was approved. We are preparing it.</p>
{{template "items" .}}
{{if .ShippingAddress}}<p>Shipping to: {{.ShippingAddress}}</p>{{end}}{{end}}`,

	purposePaymentRefunded: `{{define "content"}}<p>Order <strong>{{.OrderNumber}}</strong> could not be fulfilled and the payment was refunded.</p>
<p><strong>Reason:</strong> {{.Reason}}</p>
<p>Refunded amount: <strong>${{money .Amount}}</strong></p>
<p>The refund shows up on your statement within 5 to 10 business days depending on your bank.</p>{{end}}`,
}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string {
		return decimal.NewFromFloat(v).StringFixed(2)
	},
}

func parseTemplates() map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(emailTemplates))
	for purpose, content := range emailTemplates {
		t := template.New(purpose).Funcs(templateFuncs)
		template.Must(t.Parse(layoutTemplate))
		template.Must(t.Parse(itemsTemplate))
		template.Must(t.Parse(content))
		parsed[purpose] = t
	}
	return parsed
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

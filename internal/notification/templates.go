package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

type templateName string

const (
	tmplOrderConfirmation templateName = "order_confirmation"
	tmplOrderStatus       templateName = "order_status"
	tmplWelcome           templateName = "welcome"
	tmplLowStock          templateName = "low_stock"
)

type orderConfirmationData struct {
	OrderID     int64
	TotalAmount string
}

type orderStatusData struct {
	OrderID   int64
	OldStatus string
	NewStatus string
}

type welcomeData struct {
	FullName string
	Email    string
}

type lowStockData struct {
	ProductID   int64
	ProductName string
	Stock       int64
}

// Each template defines a "subject" and a "body" block.
var templateText = map[templateName]string{
	tmplOrderConfirmation: `{{define "subject"}}Order Confirmation #{{.OrderID}}{{end}}
{{- define "body"}}Thank you for your order!

Order ID: {{.OrderID}}
Total Amount: {{.TotalAmount}}

Your order has been confirmed and will be processed soon.

Best regards,
E-Commerce Team{{end}}`,

	tmplOrderStatus: `{{define "subject"}}Order Status Update #{{.OrderID}}{{end}}
{{- define "body"}}Your order status has been updated.

Order ID: {{.OrderID}}
Previous Status: {{.OldStatus}}
New Status: {{.NewStatus}}

Thank you for your patience.

Best regards,
E-Commerce Team{{end}}`,

	tmplWelcome: `{{define "subject"}}Welcome to Our E-Commerce Platform!{{end}}
{{- define "body"}}Hello {{.FullName}},

Welcome to our e-commerce platform! We're excited to have you on board.

Your account has been successfully created with email: {{.Email}}

Start exploring our products and enjoy shopping!

Best regards,
E-Commerce Team{{end}}`,

	tmplLowStock: `{{define "subject"}}Low Stock Alert: {{.ProductName}}{{end}}
{{- define "body"}}ALERT: Low stock detected

Product: {{.ProductName}} (ID: {{.ProductID}})
Current Stock: {{.Stock}} units

Please restock this product soon.

E-Commerce System{{end}}`,
}

var templates = func() map[templateName]*template.Template {
	out := make(map[templateName]*template.Template, len(templateText))
	for name, text := range templateText {
		out[name] = template.Must(template.New(string(name)).Option("missingkey=error").Parse(text))
	}
	return out
}()

// render executes the named template and returns its subject and body.
func render(name templateName, data any) (string, string, error) {
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}

	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := t.ExecuteTemplate(&body, "body", data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

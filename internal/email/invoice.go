package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/mercadorhq/mercador/internal/store"
)

// InvoiceData es el modelo que consumen las plantillas de factura.
type InvoiceData struct {
	OrderReference string
	ProductName    string
	LicenseKey     string
	Amount         string
	Currency       string
	PaidAt         string
}

// InvoiceRenderer produce el cuerpo de la confirmación de compra.
// La implementación por defecto usa plantillas embebidas; una futura
// puede renderizar PDF.
type InvoiceRenderer interface {
	Render(data InvoiceData) (htmlBody, textBody string, err error)
}

const invoiceHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>¡Gracias por tu compra!</h2>
  <p>Tu pago fue aprobado y tu licencia ya está activa.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><b>Producto</b></td><td>{{.ProductName}}</td></tr>
    <tr><td><b>Referencia</b></td><td>{{.OrderReference}}</td></tr>
    <tr><td><b>Total</b></td><td>{{.Amount}} {{.Currency}}</td></tr>
    <tr><td><b>Fecha de pago</b></td><td>{{.PaidAt}}</td></tr>
  </table>
  <p>Tu clave de licencia:</p>
  <p style="font-size: 1.3em; font-family: monospace; letter-spacing: 1px;"><b>{{.LicenseKey}}</b></p>
  <p>También puedes consultarla en cualquier momento desde tu cuenta.</p>
  <p>— El equipo de Mercador</p>
</body>
</html>`

const invoiceText = `¡Gracias por tu compra!

Tu pago fue aprobado y tu licencia ya está activa.

Producto:      {{.ProductName}}
Referencia:    {{.OrderReference}}
Total:         {{.Amount}} {{.Currency}}
Fecha de pago: {{.PaidAt}}

Tu clave de licencia:

    {{.LicenseKey}}

También puedes consultarla en cualquier momento desde tu cuenta.

— El equipo de Mercador
`

// templateRenderer es el renderer por defecto.
type templateRenderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewInvoiceRenderer crea el renderer con las plantillas embebidas.
func NewInvoiceRenderer() InvoiceRenderer {
	return &templateRenderer{
		html: template.Must(template.New("invoice_html").Parse(invoiceHTML)),
		text: texttemplate.Must(texttemplate.New("invoice_text").Parse(invoiceText)),
	}
}

func (r *templateRenderer) Render(data InvoiceData) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("email: rendering invoice html: %w", err)
	}
	if err := r.text.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("email: rendering invoice text: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}

// FormatAmount convierte centavos a una cadena con separador decimal.
func FormatAmount(cents int64) string {
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d.%02d", whole, frac))
	return sb.String()
}

// invoiceDataFor arma el modelo de plantilla desde la orden y la licencia.
func invoiceDataFor(order *store.Order, product *store.Product, license *store.License) InvoiceData {
	paidAt := ""
	if order.PaidAt != nil {
		paidAt = order.PaidAt.Format("2006-01-02 15:04 MST")
	}
	name := order.ProductID
	if product != nil {
		name = product.Name
	}
	return InvoiceData{
		OrderReference: order.Reference,
		ProductName:    name,
		LicenseKey:     license.Key,
		Amount:         FormatAmount(order.AmountCents),
		Currency:       order.Currency,
		PaidAt:         paidAt,
	}
}

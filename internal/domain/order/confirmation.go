package order

import (
	"bytes"
	"html/template"

	"github.com/go-faster/errors"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Thank you for your order!</h2>
  <p>Order <strong>#{{.ID}}</strong> has been paid.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><th align="left">Product</th><th align="right">Qty</th><th align="right">Total</th></tr>
    {{- range .Lines}}
    <tr><td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.LineTotal}}</td></tr>
    {{- end}}
  </table>
  {{- if .Discounts}}
  <p>Discounts:{{range .Discounts}} {{.Code}} (-{{.Amount}}){{end}}</p>
  {{- end}}
  <p><strong>Total paid: {{.Total}}</strong></p>
  <h3>Shipping to</h3>
  <p>{{.Address.Street}}<br>{{.Address.City}}, {{.Address.State}} {{.Address.Zip}}<br>{{.Address.Country}}</p>
</body>
</html>
`))

type confirmationLine struct {
	Name      string
	Quantity  int
	LineTotal string
}

type confirmationDiscount struct {
	Code   string
	Amount string
}

type confirmationData struct {
	ID        string
	Lines     []confirmationLine
	Discounts []confirmationDiscount
	Total     string
	Address   Address
}

// renderConfirmation builds the subject and HTML body of the payment
// confirmation e-mail. Items should have Product populated.
func renderConfirmation(o *Order) (subject, body string, err error) {
	data := confirmationData{
		ID:      o.ID,
		Total:   o.Total.StringFixed(2),
		Address: o.ShippingAddress,
	}
	for _, it := range o.Items {
		name := it.ProductID
		if it.Product != nil && it.Product.Name != "" {
			name = it.Product.Name
		}
		data.Lines = append(data.Lines, confirmationLine{
			Name:      name,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	for _, d := range o.Discounts {
		data.Discounts = append(data.Discounts, confirmationDiscount{Code: d.Code, Amount: d.Amount.StringFixed(2)})
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", "", errors.Wrap(err, "render confirmation")
	}
	return "Order Confirmation - #" + o.ID, buf.String(), nil
}

package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

var paymentConfirmedTmpl = template.Must(template.New("payment_confirmed").Parse(`<!doctype html>
<html>
  <body style="font-family: sans-serif; color: #1f2937">
    <p>Hola {{.Name}},</p>
    <p>The client paid <strong>{{.Amount}} {{.Currency}}</strong> for <strong>{{.Title}}</strong>.</p>
    <p>The service is scheduled for <strong>{{.Schedule}}</strong>. You can find it in your calendar.</p>
    {{if .Link}}<p><a href="{{.Link}}">Open the conversation</a></p>{{end}}
  </body>
</html>`))

type PaymentConfirmedData struct {
	Name     string
	Title    string
	Amount   string
	Currency string
	Schedule string
	Link     string
}

// PaymentConfirmedEmail builds the email sent to a professional once an offer is paid.
func PaymentConfirmedEmail(to string, data PaymentConfirmedData) (Email, error) {
	var buf bytes.Buffer
	if err := paymentConfirmedTmpl.Execute(&buf, data); err != nil {
		return Email{}, fmt.Errorf("render payment email: %w", err)
	}
	return Email{
		To:      to,
		Subject: fmt.Sprintf("Payment confirmed: %s", data.Title),
		HTML:    buf.String(),
	}, nil
}

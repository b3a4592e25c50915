package notifications

import (
	"bytes"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

type ReservationEmail struct {
	Name       string
	Email      string
	CourseName string
	CoachName  string
	Location   string
	StartTime  time.Time
	EndTime    time.Time
	QRCode     string
}

type BookingEmail struct {
	Name          string
	Email         string
	CourseName    string
	ScheduledDate time.Time
	Amount        float64
	PaymentMethod string
}

type OfferEmail struct {
	Name       string
	Email      string
	OfferTitle string
	CoachName  string
	Amount     float64
	ValidUntil *time.Time
}

type GiftCardEmail struct {
	Email   string
	From    string
	Code    string
	Amount  float64
	Message string
}

var funcs = template.FuncMap{
	"when": func(t time.Time) string { return t.Format("Mon 02 Jan 2006, 15:04") },
	"chf":  formatCHF,
	// QR codes are generated server side as PNG data URLs.
	"img": func(s string) template.URL { return template.URL(s) },
}

var (
	reservationTemplate = template.Must(template.New("reservation").Funcs(funcs).Parse(`
<h2>Hi {{.Name}}, your helmet is reserved!</h2>
<p><strong>{{.CourseName}}</strong> with {{.CoachName}}</p>
<p>{{when .StartTime}} - {{.EndTime.Format "15:04"}}<br>{{.Location}}</p>
<p>Show this QR code at check-in:</p>
<img src="{{img .QRCode}}" alt="Your QR code" width="300" height="300">
`))

	reminderTemplate = template.Must(template.New("reminder").Funcs(funcs).Parse(`
<h2>See you soon, {{.Name}}!</h2>
<p><strong>{{.CourseName}}</strong> starts {{when .StartTime}} at {{.Location}}.</p>
<img src="{{img .QRCode}}" alt="Your QR code" width="300" height="300">
`))

	bookingTemplate = template.Must(template.New("booking").Funcs(funcs).Parse(`
<h2>Booking confirmed</h2>
<p>Hi {{.Name}}, you are booked for <strong>{{.CourseName}}</strong> on {{when .ScheduledDate}}.</p>
<p>Paid: {{chf .Amount}} ({{.PaymentMethod}})</p>
`))

	offerTemplate = template.Must(template.New("offer").Funcs(funcs).Parse(`
<h2>Thank you for your purchase</h2>
<p>Hi {{.Name}}, your offer <strong>{{.OfferTitle}}</strong> with {{.CoachName}} is now active.</p>
<p>Amount: {{chf .Amount}}</p>
{{if .ValidUntil}}<p>Valid until {{when .ValidUntil}}</p>{{end}}
`))

	giftCardTemplate = template.Must(template.New("giftcard").Funcs(funcs).Parse(`
<h2>{{.From}} sent you a gift card</h2>
<p>Value: {{chf .Amount}}</p>
<p>Your code: <strong>{{.Code}}</strong></p>
{{if .Message}}<blockquote>{{.Message}}</blockquote>{{end}}
`))
)

func formatCHF(v float64) string {
	return "CHF " + decimal.NewFromFloat(v).StringFixed(2)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

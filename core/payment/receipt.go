package payment

import (
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"

	"github.com/ramesh-perabattula/EduPay/core"
)

var (
	receiptText = texttmpl.Must(texttmpl.New("receipt.txt").Option("missingkey=error").Parse(
		`Dear {{.Student.Name}},

We received your {{.Payment.FeeType}} fee payment of {{.Payment.Amount}} ({{.Payment.Mode}}{{if .Payment.Reference.Valid}}, ref. {{.Payment.Reference.String}}{{end}}).

Outstanding {{.Payment.FeeType}} due: {{.Due}}
Total outstanding due: {{.Student.Dues.Total}}
`))

	receiptHTML = htmltmpl.Must(htmltmpl.New("receipt.gohtml").Option("missingkey=error").Parse(
		`<p>Dear {{.Student.Name}},</p>
<p>We received your <b>{{.Payment.FeeType}}</b> fee payment of <b>{{.Payment.Amount}}</b>
({{.Payment.Mode}}{{if .Payment.Reference.Valid}}, ref. {{.Payment.Reference.String}}{{end}}).</p>
<table>
  <tr><td>Outstanding {{.Payment.FeeType}} due</td><td>{{.Due}}</td></tr>
  <tr><td>Total outstanding due</td><td>{{.Student.Dues.Total}}</td></tr>
</table>`))
)

type receiptData struct {
	Receipt
	Due int64
}

// sendReceipt emails the receipt to the student, if it has an email address.
func (svc *Service) sendReceipt(rcpt Receipt) {
	if svc.mailSvc == nil || !rcpt.Student.Email.Valid {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: rcpt.Student.Name, Address: rcpt.Student.Email.String}},
		Subject:      "Payment receipt " + rcpt.Student.USN,
		TextTemplate: receiptText,
		HTMLTemplate: receiptHTML,
		TemplateData: receiptData{Receipt: rcpt, Due: rcpt.Student.Dues.Of(rcpt.Payment.FeeType)},
	})
}

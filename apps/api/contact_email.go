package main

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/S-troup10/westBasketball/libs/mailer"
)

const defaultContactSubject = "Website enquiry"

type contactSubmission struct {
	Name    string
	Email   string
	Message string
	Subject string
}

type confirmationView struct {
	Name         string
	Email        string
	MessageLines []string
	SiteName     string
	SiteLocation string
}

var confirmationTemplate = template.Must(template.New("contact_confirmation").Parse(`<html>
  <body style="margin:0;padding:0;background:#ffffff;font-family:Arial,Helvetica,sans-serif;color:#111;">
    <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="padding:32px 0;background:#ffffff;">
      <tr>
        <td align="center">
          <table role="presentation" width="520" cellpadding="0" cellspacing="0" style="text-align:left;">
            <tr>
              <td style="text-align:center;padding-bottom:20px;">
                <div style="display:inline-block;padding:8px 14px;border-radius:999px;background:#16a34a;color:#ffffff;font-weight:600;font-size:12px;text-transform:uppercase;letter-spacing:0.5px;">{{.SiteName}}</div>
              </td>
            </tr>
            <tr>
              <td style="text-align:center;padding-bottom:12px;">
                <h1 style="margin:0;font-size:22px;color:#111;">Thanks, {{.Name}}!</h1>
              </td>
            </tr>
            <tr>
              <td style="text-align:center;padding-bottom:24px;">
                <p style="margin:0;font-size:14px;color:#444;">We've received your message and will get back to you shortly.</p>
              </td>
            </tr>
            <tr>
              <td>
                <div style="border-left:4px solid #dc2626;padding:12px 16px;background:#f9fafb;border-radius:6px;">
                  <p style="margin:0 0 6px 0;font-weight:600;color:#111;">Your Message:</p>
                  <p style="margin:0 0 10px 0;color:#444;line-height:1.5;">{{range $i, $line := .MessageLines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
                  <p style="margin:0;font-size:13px;color:#dc2626;font-weight:600;">We'll reply to: {{.Email}}</p>
                </div>
              </td>
            </tr>
            <tr>
              <td style="padding-top:24px;text-align:center;">
                <p style="margin:0;font-size:12px;color:#666;">If you need to add anything, just reply to this email.</p>
                {{if .SiteLocation}}<p style="margin:6px 0 0;font-size:12px;color:#666;">{{.SiteLocation}}</p>{{end}}
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>
`))

// headerSafe folds CR and LF into spaces so user input cannot add mail headers.
func headerSafe(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(s)), " ")
}

func buildContactNotification(receiver string, sub contactSubmission) mailer.Message {
	text := fmt.Sprintf(
		"New website enquiry\n\nName: %s\nEmail: %s\nSubject: %s\n\n%s\n",
		sub.Name, sub.Email, sub.Subject, sub.Message,
	)
	return mailer.Message{
		To:      []string{receiver},
		ReplyTo: headerSafe(sub.Email),
		Subject: "New enquiry from " + headerSafe(sub.Name),
		Text:    text,
	}
}

func buildContactConfirmation(siteName, siteLocation string, sub contactSubmission) (mailer.Message, error) {
	text := fmt.Sprintf(
		"Hi %s,\n\nThanks for reaching out to %s. We received your message and will respond soon.\n\n"+
			"Here's what you sent:\n%s\n\nIf you need to add anything, just reply to this email.\n\n- %s",
		sub.Name, siteName, sub.Message, siteName,
	)

	var buf bytes.Buffer
	err := confirmationTemplate.Execute(&buf, confirmationView{
		Name:         sub.Name,
		Email:        sub.Email,
		MessageLines: strings.Split(strings.ReplaceAll(sub.Message, "\r\n", "\n"), "\n"),
		SiteName:     siteName,
		SiteLocation: siteLocation,
	})
	if err != nil {
		return mailer.Message{}, fmt.Errorf("render confirmation: %w", err)
	}

	return mailer.Message{
		To:      []string{headerSafe(sub.Email)},
		Subject: "Thanks for contacting " + siteName,
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

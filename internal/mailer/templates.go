package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "verification"}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Welcome!</h2>
  <p>Thanks for signing up. Please confirm your email address to activate your account.</p>
  <p style="margin: 24px 0;">
    <a href="{{.VerifyURL}}" style="display: inline-block; padding: 12px 24px; background: #2563eb; color: #ffffff; text-decoration: none; border-radius: 6px;">Verify Email</a>
  </p>
  <p>If the button does not work, copy this link into your browser:</p>
  <p><a href="{{.VerifyURL}}">{{.VerifyURL}}</a></p>
  <p style="color: #6b7280; font-size: 12px;">If you did not create this account, you can ignore this email.</p>
</div>
{{end}}

{{define "reset"}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Password Reset</h2>
  <p>We received a request to reset your password. Use this code:</p>
  <div style="font-size: 28px; font-weight: bold; letter-spacing: 4px; margin: 16px 0;">{{.Code}}</div>
  <p>Or open the reset page directly:</p>
  <p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
  <p>The code expires in one hour.</p>
  <p style="color: #6b7280; font-size: 12px;">If you did not request a reset, your password is still safe and no action is needed.</p>
</div>
{{end}}

{{define "changed"}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Password Changed</h2>
  <p>The password for your account was just changed.</p>
  <p>If this was you, no action is needed. If you did not make this change, reset your password immediately and contact support.</p>
</div>
{{end}}
`))

type verificationData struct {
	VerifyURL string
}

type resetData struct {
	Code     string
	ResetURL string
}

func renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

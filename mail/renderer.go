package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/biihlive/authcodes/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type templateSpec struct {
	file    string
	subject string
}

var kindTemplates = map[domain.CodeKind]templateSpec{
	domain.CodeKindPasswordRecovery: {
		file:    "recovery_code.html",
		subject: "Código de recuperación de contraseña - %s",
	},
	domain.CodeKindEmailVerification: {
		file:    "verification_code.html",
		subject: "Verifica tu correo electrónico - %s",
	},
}

// TemplateData is what the HTML templates see.
type TemplateData struct {
	AppName          string
	Subject          string
	Email            string
	Code             string
	ExpiresInMinutes int
}

// Renderer turns a code into a ready-to-send Message.
type Renderer struct {
	appName   string
	expiresIn time.Duration
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(appName string, expiresIn time.Duration) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Renderer{appName: appName, expiresIn: expiresIn, templates: tmpl}, nil
}

// Render builds the message for kind.
func (r *Renderer) Render(kind domain.CodeKind, to, code string) (*Message, error) {
	spec, ok := kindTemplates[kind]
	if !ok {
		return nil, fmt.Errorf("no email template for code kind %q", kind)
	}

	data := TemplateData{
		AppName:          r.appName,
		Subject:          fmt.Sprintf(spec.subject, r.appName),
		Email:            to,
		Code:             code,
		ExpiresInMinutes: int(r.expiresIn.Minutes()),
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, spec.file, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", spec.file, err)
	}
	return &Message{To: to, Subject: data.Subject, HTMLBody: buf.String()}, nil
}

package mailer

import (
	"bytes"
	"fmt"
	"text/template"
)

// bodies keyed by MailMessage.Template; unknown keys use "generic".
var bodies = template.Must(template.New("mail").Parse(`
{{define "verify_email"}}Bonjour {{.name}},

Merci pour votre inscription. Pour confirmer votre adresse e-mail, ouvrez le lien suivant :

{{.link}}

Ce lien expire le {{.expires}}. Une fois votre adresse confirmée, un responsable du cabinet validera votre compte.
{{end}}
{{define "account_approved"}}Bonjour {{.name}},

{{.message}}

Vous pouvez dès maintenant vous connecter à l'application.
{{end}}
{{define "account_rejected"}}Bonjour {{.name}},

{{.message}}

Pour toute question, contactez l'administrateur du cabinet.
{{end}}
{{define "generic"}}Bonjour {{.name}},

{{.message}}
{{end}}
`))

// renderBody executes the named body with data.
func renderBody(name string, data map[string]string) (string, error) {
	if bodies.Lookup(name) == nil {
		name = "generic"
	}
	var buf bytes.Buffer
	if err := bodies.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render mail %s: %w", name, err)
	}
	return buf.String() + signature, nil
}

const signature = "\n--\nCe message a été envoyé automatiquement, merci de ne pas y répondre.\n"

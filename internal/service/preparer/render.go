package preparer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/oshokin/webdeploy/internal/config"
	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

// renderedFilePermissions keeps rendered credentials out of other users' reach.
const renderedFilePermissions = 0o640

// requiredTemplateKeys must be non-empty before rendering; the rendered file
// carries connection credentials and an incomplete one would take the
// application down at first request.
var requiredTemplateKeys = []string{"db_host", "db_user", "db_password", "db_name"}

// TemplateContext builds the key/value inputs for the app config template.
func TemplateContext(db config.DatabaseConfig) map[string]string {
	port := db.Port
	if port == 0 {
		port = config.DefaultDatabasePort
	}

	return map[string]string{
		"db_host":     db.Host,
		"db_port":     fmt.Sprintf("%d", port),
		"db_user":     db.User,
		"db_password": db.Password,
		"db_name":     db.Name,
		"crypto_key":  db.CryptoKey,
		"base_url":    db.BaseURL,
	}
}

// renderAppConfig renders the template into outputPath with missing-key
// detection on both sides: required keys are checked explicitly, and the
// template engine rejects references to keys absent from the context.
func renderAppConfig(templatePath, outputPath string, context map[string]string) error {
	for _, key := range requiredTemplateKeys {
		if context[key] == "" {
			return fmt.Errorf("%w: required template input %q is empty", deploy.ErrConfigRender, key)
		}
	}

	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return fmt.Errorf("%w: parse template: %w", deploy.ErrConfigRender, err)
	}

	tmpl.Option("missingkey=error")

	var rendered bytes.Buffer
	if err = tmpl.Execute(&rendered, context); err != nil {
		return fmt.Errorf("%w: execute template: %w", deploy.ErrConfigRender, err)
	}

	if err = os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("%w: create config directory: %w", deploy.ErrConfigRender, err)
	}

	if err = os.WriteFile(outputPath, rendered.Bytes(), renderedFilePermissions); err != nil {
		return fmt.Errorf("%w: write rendered config: %w", deploy.ErrConfigRender, err)
	}

	return nil
}

package challenge

import (
	"strings"

	"github.com/jmerrifield20/webhook-solver/internal/errs"
)

// Identity is the registration payload. It is supplied by configuration and
// never changes during a run.
type Identity struct {
	Name  string `json:"name"`
	RegNo string `json:"regNo"`
	Email string `json:"email"`
}

// Validate checks that every field is non-empty. Failures are configuration
// errors.
func (id Identity) Validate() error {
	missing := []string{}
	if strings.TrimSpace(id.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(id.RegNo) == "" {
		missing = append(missing, "regNo")
	}
	if strings.TrimSpace(id.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return errs.Configuration(
			"identity is missing "+strings.Join(missing, ", "),
			map[string]any{"missing": missing},
		)
	}
	return nil
}

// Challenge is the server-issued bundle returned by registration. It is
// created once per run and never mutated.
type Challenge struct {
	CallbackURL Optional[string] // "webhook"
	Credential  Optional[string] // "accessToken"
	ResourceURL Optional[string] // "questionUrl"
}

// HasResource reports whether registration pointed at a downloadable resource.
func (c *Challenge) HasResource() bool {
	return c != nil && c.ResourceURL.IsPresent()
}

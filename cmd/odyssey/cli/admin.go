package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/odyssey-books/internal/auth"
)

// Provisioner creates tenants and their credentials.
type Provisioner interface {
	CreateCompany(ctx context.Context, name string) (auth.Company, error)
	IssueKey(ctx context.Context, companyID int64, label string) (auth.IssuedKey, error)
}

// AdminCLI provisions companies and API keys.
type AdminCLI struct {
	provisioner Provisioner
}

func NewAdminCLI(provisioner Provisioner) *AdminCLI {
	return &AdminCLI{provisioner: provisioner}
}

// Output selects where command results go.
type Output struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *Output) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// CompanyCreateCommand provisions a company and prints its id.
func (c *AdminCLI) CompanyCreateCommand(ctx context.Context, name string, out Output) int {
	out.defaults()
	company, err := c.provisioner.CreateCompany(ctx, name)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "company create: %v\n", err)
		return 1
	}
	if out.JSONOutput {
		return encode(out, "company create", company)
	}
	_, _ = fmt.Fprintf(out.Stdout, "company %d created: %s\n", company.ID, company.Name)
	return 0
}

type issuedKeyJSON struct {
	ID        string `json:"id"`
	CompanyID int64  `json:"company_id"`
	Label     string `json:"label"`
	Token     string `json:"token"`
}

// APIKeyCreateCommand mints a key. The token is printed once and cannot be
// recovered afterwards.
func (c *AdminCLI) APIKeyCreateCommand(ctx context.Context, companyID int64, label string, out Output) int {
	out.defaults()
	if companyID <= 0 {
		_, _ = fmt.Fprintln(out.Stderr, "apikey create: -company is required and must be positive")
		return 1
	}
	issued, err := c.provisioner.IssueKey(ctx, companyID, label)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "apikey create: %v\n", err)
		return 1
	}
	if out.JSONOutput {
		return encode(out, "apikey create", issuedKeyJSON{
			ID:        issued.Key.ID.String(),
			CompanyID: issued.Key.CompanyID,
			Label:     issued.Key.Label,
			Token:     issued.Token,
		})
	}
	_, _ = fmt.Fprintf(out.Stdout, "key %s for company %d (%s)\n", issued.Key.ID, issued.Key.CompanyID, issued.Key.Label)
	_, _ = fmt.Fprintf(out.Stdout, "token: %s\n", issued.Token)
	_, _ = fmt.Fprintln(out.Stdout, "store it now; only its hash is kept")
	return 0
}

func encode(out Output, command string, v any) int {
	if err := json.NewEncoder(out.Stdout).Encode(v); err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "%s: encode json: %v\n", command, err)
		return 1
	}
	return 0
}

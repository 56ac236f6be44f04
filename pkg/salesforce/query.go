package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/internal/model"
)

// Account represents the Salesforce Account fields a lead is built from.
type Account struct {
	ID           string `json:"Id" salesforce:"Id"`
	Name         string `json:"Name" salesforce:"Name"`
	Website      string `json:"Website" salesforce:"Website"`
	Industry     string `json:"Industry" salesforce:"Industry"`
	Description  string `json:"Description" salesforce:"Description"`
	BillingCity  string `json:"BillingCity" salesforce:"BillingCity"`
	BillingState string `json:"BillingState" salesforce:"BillingState"`
}

// accountFields are the SOQL fields selected for Account queries.
var accountFields = []string{
	"Id", "Name", "Website", "Industry", "Description",
	"BillingCity", "BillingState",
}

// maxQueryLimit caps the number of accounts fetched in one pending query.
const maxQueryLimit = 2000

// FindAccountByID queries Salesforce for an Account by its ID.
// Returns nil if no account is found.
func FindAccountByID(ctx context.Context, c Client, id string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Id = '%s' LIMIT 1",
		strings.Join(accountFields, ", "),
		escapeSoql(id),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by id %s", id))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// PendingAccounts returns accounts with a website whose lineField is still
// empty, oldest first.
func PendingAccounts(ctx context.Context, c Client, lineField string, limit int) ([]Account, error) {
	if !validFieldName(lineField) {
		return nil, eris.Errorf("sf: invalid field name %q", lineField)
	}
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Website != null AND %s = null ORDER BY CreatedDate ASC LIMIT %d",
		strings.Join(accountFields, ", "),
		lineField,
		limit,
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, "sf: query pending accounts")
	}
	return accounts, nil
}

// AccountToLead converts an Account to a lead keyed by its Salesforce ID.
func AccountToLead(a Account) model.Lead {
	site := strings.TrimSpace(a.Website)
	if site != "" && !strings.Contains(site, "://") {
		site = "https://" + strings.ToLower(site)
	}

	var loc string
	city, state := strings.TrimSpace(a.BillingCity), strings.TrimSpace(a.BillingState)
	switch {
	case city != "" && state != "":
		loc = city + ", " + state
	default:
		loc = city + state
	}

	l := model.Lead{
		CompanyName:  strings.TrimSpace(a.Name),
		Description:  strings.TrimSpace(a.Description),
		Location:     loc,
		SiteURL:      site,
		SalesforceID: a.ID,
	}
	if a.ID != "" {
		l.SourceID = "sf-" + a.ID
	}
	if ind := strings.TrimSpace(a.Industry); ind != "" {
		l.Keywords = []string{ind}
	}
	return l
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

// validFieldName reports whether name is a plain API field name that is
// safe to splice into SOQL.
func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/internal/model"
)

// OpenerFields names the Account custom fields an opener is written to.
// Empty names are skipped.
type OpenerFields struct {
	Line     string
	Tier     string
	Artifact string
}

// Values maps a result onto the configured fields.
func (f OpenerFields) Values(r model.Result) map[string]any {
	out := make(map[string]any, 3)
	if f.Line != "" {
		out[f.Line] = r.Line
	}
	if f.Tier != "" {
		out[f.Tier] = string(r.ConfidenceTier)
	}
	if f.Artifact != "" {
		out[f.Artifact] = r.ArtifactText
	}
	return out
}

func (f OpenerFields) names() []string {
	var out []string
	for _, n := range []string{f.Line, f.Tier, f.Artifact} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// UpdateOpener writes one result to an Account.
func UpdateOpener(ctx context.Context, c Client, accountID string, fields OpenerFields, r model.Result) error {
	if accountID == "" {
		return eris.New("sf: account id is required")
	}
	values := fields.Values(r)
	if len(values) == 0 {
		return eris.New("sf: no opener fields configured")
	}
	if err := c.UpdateOne(ctx, "Account", accountID, values); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update opener on account %s", accountID))
	}
	return nil
}

// VerifyOpenerFields checks that every configured field exists on Account
// and is updateable.
func VerifyOpenerFields(ctx context.Context, c Client, fields OpenerFields) error {
	desc, err := c.DescribeSObject(ctx, "Account")
	if err != nil {
		return eris.Wrap(err, "sf: verify opener fields")
	}
	byName := make(map[string]SObjectField, len(desc.Fields))
	for _, f := range desc.Fields {
		byName[f.Name] = f
	}
	for _, name := range fields.names() {
		f, ok := byName[name]
		if !ok {
			return eris.Errorf("sf: Account has no field %s", name)
		}
		if !f.Updateable {
			return eris.Errorf("sf: Account field %s is not updateable", name)
		}
	}
	return nil
}

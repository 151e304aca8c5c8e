package mccmnc

import (
	"github.com/pccr10001/mbpd/internal/providers"
)

// Resolver turns numeric operator codes reported by modems into carrier
// names using the provider database.
type Resolver struct {
	db *providers.Database
}

func NewResolver(db *providers.Database) *Resolver {
	return &Resolver{db: db}
}

// GetOperatorName finds the operator name for a given MCC and MNC
func (r *Resolver) GetOperatorName(mcc, mnc string) string {
	if r == nil || r.db == nil {
		return ""
	}
	if p := r.db.LookupMCCMNC(mcc + mnc); p != nil {
		return p.Name
	}
	return ""
}

// ParseOperatorName picks a display name for the registered operator.
// Some devices report the MCC/MNC as the name until they have fully
// registered, so a 5 or 6 digit name is looked up. An empty name falls back
// to code. Non-numeric names are returned as is; unknown codes give "".
func (r *Resolver) ParseOperatorName(name, code string) string {
	orig := name
	if orig == "" {
		if code == "" {
			return ""
		}
		orig = code
	} else if len(orig) < 5 || len(orig) > 6 {
		return orig // not an MCC/MNC
	}

	mcc, mnc, ok := providers.SplitMCCMNC(orig)
	if !ok {
		return orig
	}
	if r == nil || r.db == nil {
		return orig
	}
	return r.GetOperatorName(mcc, mnc)
}

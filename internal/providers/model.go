package providers

import (
	"strings"
	"sync/atomic"
)

// Family tells which radio technology an access method belongs to.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyGSM
	FamilyCDMA
)

func (f Family) String() string {
	switch f {
	case FamilyGSM:
		return "gsm"
	case FamilyCDMA:
		return "cdma"
	default:
		return "unknown"
	}
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Family) UnmarshalText(b []byte) error {
	switch string(b) {
	case "gsm":
		*f = FamilyGSM
	case "cdma":
		*f = FamilyCDMA
	default:
		*f = FamilyUnknown
	}
	return nil
}

// MCCMNC is one GSM network identifier.
type MCCMNC struct {
	MCC string `json:"mcc"`
	MNC string `json:"mnc"`
}

func newMCCMNC(mcc, mnc string) MCCMNC {
	return MCCMNC{MCC: strings.TrimSpace(mcc), MNC: strings.TrimSpace(mnc)}
}

func (m MCCMNC) String() string {
	return m.MCC + m.MNC
}

// AccessMethod holds the dial-up settings of one APN (GSM) or one CDMA
// account. Empty strings mean the field was not present in the database.
type AccessMethod struct {
	refs atomic.Int32

	Name     string   `json:"name"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	Gateway  string   `json:"gateway,omitempty"`
	DNS      []string `json:"dns,omitempty"`
	APN      string   `json:"apn,omitempty"`
	Family   Family   `json:"family"`
}

func newAccessMethod(family Family) *AccessMethod {
	m := &AccessMethod{Family: family}
	m.refs.Store(1)
	return m
}

func (m *AccessMethod) Ref() *AccessMethod {
	m.refs.Add(1)
	return m
}

func (m *AccessMethod) Unref() {
	if m.refs.Add(-1) == 0 {
		m.DNS = nil
	}
}

// Provider is one carrier within a country.
type Provider struct {
	refs atomic.Int32

	Name string `json:"name"`
	// LocalizedNames maps an xml:lang value to the name in that language.
	LocalizedNames map[string]string `json:"localized_names,omitempty"`
	Methods        []*AccessMethod   `json:"methods"`
	MCCMNC         []MCCMNC          `json:"mcc_mnc,omitempty"`
	CDMASID        []uint32          `json:"cdma_sid,omitempty"`
}

func newProvider() *Provider {
	p := &Provider{}
	p.refs.Store(1)
	return p
}

func (p *Provider) Ref() *Provider {
	p.refs.Add(1)
	return p
}

// Unref drops one reference. The last one releases the access methods.
func (p *Provider) Unref() {
	if p.refs.Add(-1) != 0 {
		return
	}
	for _, m := range p.Methods {
		m.Unref()
	}
	p.Methods = nil
	p.MCCMNC = nil
	p.CDMASID = nil
}

// MethodsOf returns the access methods of the given family.
func (p *Provider) MethodsOf(family Family) []*AccessMethod {
	var out []*AccessMethod
	for _, m := range p.Methods {
		if m.Family == family {
			out = append(out, m)
		}
	}
	return out
}

// HasSID reports whether the provider operates the CDMA system sid.
func (p *Provider) HasSID(sid uint32) bool {
	for _, s := range p.CDMASID {
		if s == sid {
			return true
		}
	}
	return false
}

// CountryInfo groups the providers of one ISO-3166 country. Name is empty
// when the provider database names a country the ISO table does not know.
type CountryInfo struct {
	refs atomic.Int32

	Code      string      `json:"code"`
	Name      string      `json:"name,omitempty"`
	Providers []*Provider `json:"providers"`
}

func newCountryInfo(code, name string) *CountryInfo {
	c := &CountryInfo{Code: code, Name: name, Providers: []*Provider{}}
	c.refs.Store(1)
	return c
}

func (c *CountryInfo) Ref() *CountryInfo {
	c.refs.Add(1)
	return c
}

// Unref drops one reference. The last one releases the providers.
func (c *CountryInfo) Unref() {
	if c.refs.Add(-1) != 0 {
		return
	}
	for _, p := range c.Providers {
		p.Unref()
	}
	c.Providers = nil
}

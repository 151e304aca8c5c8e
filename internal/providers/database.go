package providers

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pccr10001/mbpd/pkg/logger"
)

const (
	DefaultCountryCodesPath     = "/usr/share/xml/iso-codes/iso_3166.xml"
	DefaultServiceProvidersPath = "/usr/share/mobile-broadband-provider-info/serviceproviders.xml"
)

type Options struct {
	// CountryCodes and ServiceProviders default to the system locations
	// of iso-codes and mobile-broadband-provider-info.
	CountryCodes     string
	ServiceProviders string
	Translator       Translator
}

// Database is the parsed provider table. It is read-only once Open returns
// and safe for concurrent lookups.
type Database struct {
	countries map[string]*CountryInfo
	codes     []string
}

// Open loads the country codes and then the provider database. The returned
// Database is never nil; a non-nil error describes which part could not be
// loaded and has already been logged. Without a country table no provider
// data is read.
func Open(opts Options) (*Database, error) {
	ccPath := opts.CountryCodes
	if ccPath == "" {
		ccPath = DefaultCountryCodesPath
	}
	spPath := opts.ServiceProviders
	if spPath == "" {
		spPath = DefaultServiceProvidersPath
	}

	countries, err := LoadCountryCodes(ccPath, opts.Translator)
	if countries == nil {
		return newDatabase(nil), err
	}

	perr := ParseProviders(countries, spPath)
	db := newDatabase(countries)
	logger.Log.Infof("Loaded %d countries from %s and %s", db.Len(), ccPath, spPath)
	return db, errors.Join(err, perr)
}

func newDatabase(countries map[string]*CountryInfo) *Database {
	if countries == nil {
		countries = make(map[string]*CountryInfo)
	}
	codes := make([]string, 0, len(countries))
	for code := range countries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return &Database{countries: countries, codes: codes}
}

func (d *Database) Len() int {
	return len(d.codes)
}

// NumProviders counts the providers across all countries.
func (d *Database) NumProviders() int {
	n := 0
	for _, c := range d.countries {
		n += len(c.Providers)
	}
	return n
}

// Countries returns every country ordered by code.
func (d *Database) Countries() []*CountryInfo {
	out := make([]*CountryInfo, 0, len(d.codes))
	for _, code := range d.codes {
		out = append(out, d.countries[code])
	}
	return out
}

func (d *Database) LookupCountry(code string) *CountryInfo {
	return d.countries[strings.ToUpper(strings.TrimSpace(code))]
}

// LookupMCCMNC finds the provider operating a 5 or 6 digit MCC/MNC code.
// A provider whose three digit MNC matches wins over one matching only the
// first two digits; within each precision the first match in country code
// and document order wins.
func (d *Database) LookupMCCMNC(mccmnc string) *Provider {
	mcc, mnc, ok := SplitMCCMNC(mccmnc)
	if !ok {
		return nil
	}

	var match2, match3 *Provider
	for _, code := range d.codes {
		for _, p := range d.countries[code].Providers {
			for _, id := range p.MCCMNC {
				if id.MCC != mcc {
					continue
				}
				if match3 == nil && len(mnc) == 3 && prefixEqual(mnc, id.MNC, 3) {
					match3 = p
				}
				if match2 == nil && prefixEqual(mnc, id.MNC, 2) {
					match2 = p
				}
				if match2 != nil && match3 != nil {
					return match3
				}
			}
		}
	}

	if match3 != nil {
		return match3
	}
	return match2
}

// prefixEqual compares at most n leading bytes of a and b, treating the end
// of a string as a terminator like strncmp does.
func prefixEqual(a, b string, n int) bool {
	if len(a) > n {
		a = a[:n]
	}
	if len(b) > n {
		b = b[:n]
	}
	return a == b
}

// LookupCDMASID returns the first provider operating the CDMA system sid.
func (d *Database) LookupCDMASID(sid uint32) *Provider {
	for _, code := range d.codes {
		for _, p := range d.countries[code].Providers {
			if p.HasSID(sid) {
				return p
			}
		}
	}
	return nil
}

// Close drops the references the table holds. Objects a caller retained
// with Ref stay valid.
func (d *Database) Close() {
	for _, c := range d.countries {
		c.Unref()
	}
	d.countries = make(map[string]*CountryInfo)
	d.codes = nil
}

// SplitMCCMNC splits a 5 or 6 digit operator code into its MCC and MNC.
func SplitMCCMNC(s string) (mcc, mnc string, ok bool) {
	if len(s) != 5 && len(s) != 6 {
		return "", "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", "", false
		}
	}
	return s[:3], s[3:], true
}

// Dump writes a human readable listing of every provider.
func (d *Database) Dump(w io.Writer) {
	for _, c := range d.Countries() {
		for _, p := range c.Providers {
			fmt.Fprintf(w, "Provider: %s (%s)\n", p.Name, c.Code)
			for _, id := range p.MCCMNC {
				fmt.Fprintf(w, "        MCC/MNC: %s-%s\n", id.MCC, id.MNC)
			}
			for _, sid := range p.CDMASID {
				fmt.Fprintf(w, "        SID: %d\n", sid)
			}
			for _, m := range p.Methods {
				switch m.Family {
				case FamilyGSM:
					fmt.Fprintf(w, "     APN: %s (%s)\n", m.Name, m.APN)
				case FamilyCDMA:
					fmt.Fprintf(w, "     CDMA: %s\n", m.Name)
				default:
					continue
				}
				fmt.Fprintf(w, "        username: %s\n", m.Username)
				fmt.Fprintf(w, "        password: %s\n", m.Password)
				fmt.Fprintf(w, "        dns     : %s\n", strings.Join(m.DNS, ", "))
				fmt.Fprintf(w, "        gateway : %s\n", m.Gateway)
			}
			fmt.Fprintln(w)
		}
	}
}

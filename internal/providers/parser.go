package providers

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pccr10001/mbpd/pkg/logger"
)

const (
	readChunkSize = 4096

	supportedFormat = "2.0"
	xmlNamespace    = "http://www.w3.org/XML/1998/namespace"
)

// ErrUnsupportedFormat is returned when the serviceproviders document
// declares a format version other than 2.0.
var ErrUnsupportedFormat = errors.New("unsupported mobile broadband provider database format")

type parserState int

const (
	stateToplevel parserState = iota
	stateCountry
	stateProvider
	stateGSM
	stateGSMAPN
	stateCDMA
	stateError
)

// textSlot collects the character data written directly inside one open
// element.
type textSlot struct {
	lang string
	text strings.Builder
}

type mobileParser struct {
	countries map[string]*CountryInfo
	state     parserState
	err       error

	currentCountry   *CountryInfo
	currentProviders []*Provider
	currentProvider  *Provider
	currentMethod    *AccessMethod

	open []*textSlot
}

// ParseProviders reads a serviceproviders.xml file and adds its providers to
// countries, creating placeholder entries for unknown country codes.
// Countries closed before a read or parse error keep their providers.
func ParseProviders(countries map[string]*CountryInfo, path string) error {
	f, err := os.Open(path)
	if err != nil {
		logger.Log.Warnf("Could not read %s: %v", path, err)
		return fmt.Errorf("open service providers: %w", err)
	}
	defer f.Close()

	return ParseProvidersReader(countries, f)
}

// ParseProvidersReader is ParseProviders over an arbitrary reader.
func ParseProvidersReader(countries map[string]*CountryInfo, r io.Reader) error {
	p := &mobileParser{countries: countries, state: stateToplevel}
	dec := xml.NewDecoder(bufio.NewReaderSize(r, readChunkSize))

	var err error
	for {
		var tok xml.Token
		tok, err = dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			p.startElement(t)
		case xml.EndElement:
			p.endElement(t.Name.Local)
		case xml.CharData:
			if n := len(p.open); n > 0 {
				p.open[n-1].text.Write(t)
			}
		}
	}

	if errors.Is(err, io.EOF) {
		err = nil
	} else {
		logger.Log.Warnf("Error while parsing XML: %v", err)
		err = fmt.Errorf("parse service providers: %w", err)
	}

	p.discardPending()

	if p.err != nil {
		return p.err
	}
	return err
}

func (p *mobileParser) discardPending() {
	if p.currentMethod != nil {
		p.currentMethod.Unref()
		p.currentMethod = nil
	}
	if p.currentProvider != nil {
		logger.Log.Warn("pending current provider")
		p.currentProvider.Unref()
		p.currentProvider = nil
	}
	if len(p.currentProviders) > 0 {
		logger.Log.Warn("pending current providers")
		for _, prov := range p.currentProviders {
			prov.Unref()
		}
		p.currentProviders = nil
	}
	p.currentCountry = nil
}

func (p *mobileParser) startElement(se xml.StartElement) {
	p.open = append(p.open, &textSlot{})

	switch p.state {
	case stateToplevel:
		p.toplevelStart(se)
	case stateCountry:
		if se.Name.Local == "provider" {
			p.state = stateProvider
			p.currentProvider = newProvider()
		}
	case stateProvider:
		p.providerStart(se)
	case stateGSM:
		p.gsmStart(se)
	case stateCDMA:
		p.cdmaStart(se)
	}
}

// endElement pops the text slot of the closing element and hands its text
// to the current state.
func (p *mobileParser) endElement(name string) {
	var text, lang string
	if n := len(p.open); n > 0 {
		slot := p.open[n-1]
		p.open = p.open[:n-1]
		text = strings.TrimSpace(slot.text.String())
		lang = slot.lang
	}

	switch p.state {
	case stateCountry:
		p.countryEnd(name)
	case stateProvider:
		p.providerEnd(name, text, lang)
	case stateGSM:
		if name == "gsm" {
			p.state = stateProvider
		}
	case stateGSMAPN:
		p.gsmAPNEnd(name, text)
	case stateCDMA:
		p.cdmaEnd(name, text)
	}
}

func (p *mobileParser) toplevelStart(se xml.StartElement) {
	switch se.Name.Local {
	case "serviceproviders":
		if format, ok := lookupAttr(se, "format"); ok && format != supportedFormat {
			logger.Log.Warnf("Mobile broadband provider database format '%s' not supported", format)
			p.err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
			p.state = stateError
		}
	case "country":
		code, ok := lookupAttr(se, "code")
		if !ok {
			return
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		country, exists := p.countries[code]
		if !exists {
			logger.Log.Warnf("Unknown country code '%s' in provider database", code)
			country = newCountryInfo(code, "")
			p.countries[code] = country
		}
		p.currentCountry = country
		p.state = stateCountry
	}
}

func (p *mobileParser) providerStart(se xml.StartElement) {
	switch se.Name.Local {
	case "gsm":
		p.state = stateGSM
	case "cdma":
		p.state = stateCDMA
		p.currentMethod = newAccessMethod(FamilyCDMA)
	case "name":
		if lang, ok := langAttr(se); ok {
			p.open[len(p.open)-1].lang = lang
		}
	}
}

func (p *mobileParser) gsmStart(se xml.StartElement) {
	switch se.Name.Local {
	case "network-id":
		mcc, _ := lookupAttr(se, "mcc")
		mnc, _ := lookupAttr(se, "mnc")
		if strings.TrimSpace(mcc) != "" && strings.TrimSpace(mnc) != "" {
			p.currentProvider.MCCMNC = append(p.currentProvider.MCCMNC, newMCCMNC(mcc, mnc))
		}
	case "apn":
		value, ok := lookupAttr(se, "value")
		if !ok {
			return
		}
		p.state = stateGSMAPN
		p.currentMethod = newAccessMethod(FamilyGSM)
		p.currentMethod.APN = strings.TrimSpace(value)
	}
}

func (p *mobileParser) cdmaStart(se xml.StartElement) {
	if se.Name.Local != "sid" {
		return
	}
	value, ok := lookupAttr(se, "value")
	if !ok {
		return
	}
	sid, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err == nil && sid > 0 {
		p.currentProvider.CDMASID = append(p.currentProvider.CDMASID, uint32(sid))
	}
}

func (p *mobileParser) countryEnd(name string) {
	if name != "country" {
		return
	}
	c := p.currentCountry
	c.Providers = append(c.Providers, p.currentProviders...)
	p.currentCountry = nil
	p.currentProviders = nil
	p.state = stateToplevel
}

func (p *mobileParser) providerEnd(name, text, lang string) {
	prov := p.currentProvider
	switch name {
	case "name":
		if lang != "" {
			if prov.LocalizedNames == nil {
				prov.LocalizedNames = make(map[string]string)
			}
			if _, exists := prov.LocalizedNames[lang]; !exists {
				prov.LocalizedNames[lang] = text
			}
		}
		// Use the first one.
		if prov.Name == "" {
			prov.Name = text
		}
	case "provider":
		p.currentProviders = append(p.currentProviders, prov)
		p.currentProvider = nil
		p.state = stateCountry
	}
}

// methodField stores text children shared by GSM and CDMA methods.
func (p *mobileParser) methodField(name, text string) {
	m := p.currentMethod
	switch name {
	case "username":
		m.Username = text
	case "password":
		m.Password = text
	case "dns":
		m.DNS = append(m.DNS, text)
	case "gateway":
		m.Gateway = text
	}
}

func (p *mobileParser) gsmAPNEnd(name, text string) {
	switch name {
	case "name":
		if p.currentMethod.Name == "" {
			p.currentMethod.Name = text
		}
	case "apn":
		if p.currentMethod.Name == "" {
			p.currentMethod.Name = "Default"
		}
		p.currentProvider.Methods = append(p.currentProvider.Methods, p.currentMethod)
		p.currentMethod = nil
		p.state = stateGSM
	default:
		p.methodField(name, text)
	}
}

func (p *mobileParser) cdmaEnd(name, text string) {
	if name != "cdma" {
		p.methodField(name, text)
		return
	}
	if p.currentMethod.Name == "" {
		p.currentMethod.Name = p.currentProvider.Name
	}
	p.currentProvider.Methods = append(p.currentProvider.Methods, p.currentMethod)
	p.currentMethod = nil
	p.state = stateProvider
}

func lookupAttr(se xml.StartElement, name string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}

func langAttr(se xml.StartElement) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == "lang" && (a.Name.Space == "xml" || a.Name.Space == xmlNamespace) {
			return a.Value, true
		}
	}
	return "", false
}

package providers

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pccr10001/mbpd/pkg/logger"
)

// Translator localizes country display names. Implementations look names
// up in the "iso_3166" message catalog.
type Translator interface {
	Translate(msgid string) string
}

func translate(tr Translator, s string) string {
	if tr == nil {
		return s
	}
	return tr.Translate(s)
}

// LoadCountryCodes reads an iso-codes iso_3166.xml file into a table keyed
// by the uppercase alpha-2 code. On a parse error the entries read so far
// are returned together with the error.
func LoadCountryCodes(path string, tr Translator) (map[string]*CountryInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		logger.Log.Warnf("Failed to load '%s': %v. Consider installing 'iso-codes'", path, err)
		return nil, fmt.Errorf("open country codes: %w", err)
	}
	defer f.Close()

	table, err := ReadCountryCodes(f, tr)
	if err != nil {
		logger.Log.Warnf("Failed to parse '%s': %v", path, err)
	}
	return table, err
}

// ReadCountryCodes is LoadCountryCodes over an arbitrary reader.
func ReadCountryCodes(r io.Reader, tr Translator) (map[string]*CountryInfo, error) {
	table := make(map[string]*CountryInfo)
	dec := xml.NewDecoder(bufio.NewReaderSize(r, readChunkSize))

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		if err != nil {
			if len(table) == 0 {
				table = nil
			}
			return table, fmt.Errorf("parse country codes: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "iso_3166_entry" {
			continue
		}

		code, _ := lookupAttr(se, "alpha_2_code")
		if code == "" {
			logger.Log.Warnf("Missing mandatory 'alpha_2_code' attribute in '%s' element", se.Name.Local)
			continue
		}
		name, _ := lookupAttr(se, "common_name")
		if name == "" {
			name, _ = lookupAttr(se, "name")
		}
		if name == "" {
			logger.Log.Warnf("Missing mandatory 'name' attribute in '%s' element", se.Name.Local)
			continue
		}

		code = strings.ToUpper(code)
		if _, exists := table[code]; exists {
			continue
		}
		table[code] = newCountryInfo(code, translate(tr, name))
	}
}

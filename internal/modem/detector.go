package modem

import (
	"fmt"
	"strings"
	"time"

	"github.com/pccr10001/mbpd/internal/mccmnc"
	"github.com/pccr10001/mbpd/internal/providers"
	"github.com/pccr10001/mbpd/pkg/logger"
	"go.bug.st/serial"
)

// Detection is what a modem told us about the network it is registered on.
type Detection struct {
	Port         string              `json:"port"`
	OperatorCode string              `json:"operator_code,omitempty"`
	OperatorName string              `json:"operator_name,omitempty"`
	Registration string              `json:"registration,omitempty"`
	Provider     *providers.Provider `json:"provider,omitempty"`
}

type Detector struct {
	db           *providers.Database
	resolver     *mccmnc.Resolver
	baudRate     int
	timeout      time.Duration
	excludePorts []string
}

func NewDetector(db *providers.Database, baudRate int, timeout time.Duration, excludePorts []string) *Detector {
	if baudRate <= 0 {
		baudRate = 115200
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Detector{
		db:           db,
		resolver:     mccmnc.NewResolver(db),
		baudRate:     baudRate,
		timeout:      timeout,
		excludePorts: excludePorts,
	}
}

// ListPorts returns the serial ports present on the system minus the
// configured exclusions.
func (d *Detector) ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	valid := make([]string, 0, len(ports))
	for _, p := range ports {
		if !d.isExcluded(p) {
			valid = append(valid, p)
		}
	}
	return valid, nil
}

func (d *Detector) isExcluded(port string) bool {
	for _, excluded := range d.excludePorts {
		if port == excluded {
			return true
		}
	}
	return false
}

// Detect opens portName and identifies the carrier of the inserted SIM.
func (d *Detector) Detect(portName string) (*Detection, error) {
	if d.isExcluded(portName) {
		return nil, fmt.Errorf("port %s is excluded", portName)
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	defer port.Close()

	// Short read timeout so the session can watch its own deadline.
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return nil, err
	}

	return d.DetectSession(NewSession(portName, port))
}

// DetectSession runs the identification commands on an open session.
func (d *Detector) DetectSession(s *Session) (*Detection, error) {
	// Is this a modem at all?
	if _, err := s.Execute("AT", 2*time.Second); err != nil {
		logger.Log.Warnf("[%s] AT check failed (timeout/error): %v", s.PortName, err)
		return nil, fmt.Errorf("at check %s: %w", s.PortName, err)
	}

	det := &Detection{Port: s.PortName}

	// Numeric operator format first, then the modem's own name.
	if _, err := s.Execute("AT+COPS=3,2", d.timeout); err == nil {
		if resp, err := s.Execute("AT+COPS?", d.timeout); err == nil {
			det.OperatorCode = parseOperator(resp)
		}
	}
	var modemName string
	if _, err := s.Execute("AT+COPS=3,0", d.timeout); err == nil {
		if resp, err := s.Execute("AT+COPS?", d.timeout); err == nil {
			modemName = parseOperator(resp)
		}
	}

	if _, _, ok := providers.SplitMCCMNC(det.OperatorCode); !ok {
		det.OperatorCode = ""
		// Not registered; the IMSI still carries the home network.
		if resp, err := s.Execute("AT+CIMI", d.timeout); err == nil {
			if imsi := parseIMSI(resp); len(imsi) >= 6 {
				det.OperatorCode = imsi[:6]
			}
		}
	}

	if resp, err := s.Execute("AT+CREG?", d.timeout); err == nil {
		det.Registration = parseRegistration(resp)
	}

	if det.OperatorCode != "" && d.db != nil {
		det.Provider = d.db.LookupMCCMNC(det.OperatorCode)
	}
	det.OperatorName = d.resolver.ParseOperatorName(modemName, det.OperatorCode)
	if det.OperatorName == "" && det.Provider != nil {
		det.OperatorName = det.Provider.Name
	}

	logger.Log.Infof("[%s] Operator %q (%s), registration: %s", s.PortName, det.OperatorName, det.OperatorCode, det.Registration)
	return det, nil
}

// parseOperator extracts <oper> from +COPS: <mode>,<format>,"<oper>"[,<act>].
func parseOperator(resp string) string {
	value := parseID(resp, "+COPS:")
	splitted := strings.Split(value, "\"")
	if len(splitted) < 2 {
		return ""
	}
	return strings.TrimSpace(splitted[1])
}

func parseIMSI(resp string) string {
	for _, l := range strings.Split(resp, "\n") {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "+CIMI:"))
		if len(l) >= 14 && isDigits(l) {
			return l
		}
	}
	return ""
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// parseRegistration maps +CREG: <n>,<stat> to a readable status.
func parseRegistration(resp string) string {
	parts := strings.Split(parseID(resp, "+CREG:"), ",")
	if len(parts) < 2 {
		return ""
	}
	switch strings.TrimSpace(parts[1]) {
	case "1":
		return "Home Network"
	case "5":
		return "Roaming"
	case "2":
		return "Searching..."
	case "3":
		return "Denied"
	case "4":
		return "Unknown"
	default:
		return "Not Registered"
	}
}

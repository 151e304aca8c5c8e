package modem

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pccr10001/mbpd/pkg/logger"
)

var ErrTimeout = errors.New("timeout")

// Session runs AT commands over a serial line, one at a time.
type Session struct {
	PortName string
	port     io.ReadWriter
	pending  []byte
}

// NewSession wraps an open port. The port's reads should return after a
// short timeout with (0, nil) when no data is available, as serial ports
// configured with SetReadTimeout do.
func NewSession(portName string, port io.ReadWriter) *Session {
	return &Session{PortName: portName, port: port}
}

// Execute sends cmd and collects the response lines up to the final OK.
// A line containing ERROR fails the command with the collected response.
func (s *Session) Execute(cmd string, timeout time.Duration) (string, error) {
	logger.Log.Debugf("[%s] TX: %s", s.PortName, cmd)
	if _, err := s.port.Write([]byte(cmd + "\r\n")); err != nil {
		return "", err
	}

	deadline := time.Now().Add(timeout)
	fullResponse := []string{}
	for {
		line, err := s.readLine(deadline)
		if err != nil {
			return strings.Join(fullResponse, "\n"), err
		}
		if line == "" || line == cmd {
			// blank separator or command echo
			continue
		}
		logger.Log.Debugf("[%s] RX: %s", s.PortName, line)
		fullResponse = append(fullResponse, line)

		if line == "OK" {
			return strings.Join(fullResponse, "\n"), nil
		}
		if strings.Contains(line, "ERROR") {
			return "", fmt.Errorf("modem error: %s", strings.Join(fullResponse, "\n"))
		}
	}
}

func (s *Session) readLine(deadline time.Time) (string, error) {
	buf := make([]byte, 256)
	for {
		if i := strings.IndexByte(string(s.pending), '\n'); i >= 0 {
			line := strings.TrimSpace(string(s.pending[:i]))
			s.pending = s.pending[i+1:]
			return line, nil
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := s.port.Read(buf)
		s.pending = append(s.pending, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) && n > 0 {
				continue
			}
			return "", err
		}
	}
}

func parseID(resp, prefix string) string {
	lines := strings.Split(resp, "\n")
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(l, prefix))
		}
	}
	return ""
}

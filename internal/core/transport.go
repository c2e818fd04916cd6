package core

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/orrn/printworker/internal/config"
)

const defaultDialTimeout = 10 * time.Second

// CommandRunner runs an external program and returns what it wrote.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func encoderFor(charset string) (*encoding.Encoder, error) {
	switch charset {
	case "", "utf-8":
		return nil, nil
	case "cp866":
		return encoding.ReplaceUnsupported(charmap.CodePage866.NewEncoder()), nil
	default:
		return nil, fmt.Errorf("unsupported charset: %s", charset)
	}
}

func encodeText(charset, text string) ([]byte, error) {
	enc, err := encoderFor(charset)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return []byte(text), nil
	}
	return enc.Bytes([]byte(text))
}

// SpoolerTransport writes each document to a temporary file and submits it
// with lp. The file is removed on every path out of Deliver.
type SpoolerTransport struct {
	lpPath      string
	destination string
	media       string
	cpi         int
	charset     string
	tempDir     string
	run         CommandRunner
}

func NewSpoolerTransport(cfg config.PrinterConfig) (*SpoolerTransport, error) {
	if _, err := encoderFor(cfg.Charset); err != nil {
		return nil, err
	}
	lp := cfg.LPPath
	if lp == "" {
		lp = "lp"
	}
	return &SpoolerTransport{
		lpPath:      lp,
		destination: cfg.Name,
		media:       cfg.Media,
		cpi:         cfg.CPI,
		charset:     cfg.Charset,
		run:         execCommand,
	}, nil
}

func (t *SpoolerTransport) args(path string) []string {
	args := []string{"-d", t.destination}
	if t.media != "" {
		args = append(args, "-o", "media="+t.media)
	}
	if t.cpi > 0 {
		args = append(args, "-o", "cpi="+strconv.Itoa(t.cpi))
	}
	return append(args, path)
}

func (t *SpoolerTransport) Deliver(ctx context.Context, text string) (string, error) {
	data, err := encodeText(t.charset, text)
	if err != nil {
		return "", &TransportError{Diagnostic: err.Error(), Err: err}
	}

	f, err := os.CreateTemp(t.tempDir, "printjob-*.txt")
	if err != nil {
		return "", &TransportError{Diagnostic: err.Error(), Err: err}
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", &TransportError{Diagnostic: err.Error(), Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &TransportError{Diagnostic: err.Error(), Err: err}
	}

	stdout, stderr, err := t.run(ctx, t.lpPath, t.args(path)...)
	if err != nil {
		diag := strings.TrimSpace(string(stderr))
		if diag == "" {
			diag = err.Error()
		}
		return "", &TransportError{Diagnostic: diag, Err: err}
	}

	return strings.TrimSpace(string(stdout)), nil
}

// RawTransport sends documents straight to a network receipt printer,
// usually on TCP port 9100. A new connection is opened per document.
type RawTransport struct {
	address string
	timeout time.Duration
	charset string
}

func NewRawTransport(cfg config.PrinterConfig) (*RawTransport, error) {
	if _, err := encoderFor(cfg.Charset); err != nil {
		return nil, err
	}
	address := cfg.Address
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "9100")
	}
	timeout := cfg.ConnectionTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	return &RawTransport{address: address, timeout: timeout, charset: cfg.Charset}, nil
}

func (t *RawTransport) Deliver(ctx context.Context, text string) (string, error) {
	data, err := encodeText(t.charset, text)
	if err != nil {
		return "", &TransportError{Diagnostic: err.Error(), Err: err}
	}

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return "", &TransportError{
			Diagnostic: err.Error(),
			Err:        fmt.Errorf("%w: %v", ErrConnectionFailed, err),
		}
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	n, err := conn.Write(data)
	if err != nil {
		return "", &TransportError{
			Diagnostic: err.Error(),
			Err:        fmt.Errorf("%w: %v", ErrConnectionFailed, err),
		}
	}

	return fmt.Sprintf("sent %d bytes to %s", n, t.address), nil
}

// NewTransport builds the transport named in cfg.
func NewTransport(cfg config.PrinterConfig) (Transport, error) {
	switch cfg.Transport {
	case "", "spooler":
		return NewSpoolerTransport(cfg)
	case "raw":
		return NewRawTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown printer transport: %s", cfg.Transport)
	}
}

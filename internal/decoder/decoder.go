package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

var (
	// ErrDecodeUnavailable means the decode capability is not installed or
	// not configured. It is distinct from a decoder that ran and found nothing.
	ErrDecodeUnavailable = errors.New("decoder unavailable")

	// ErrDecodeFailed means the decoder ran but produced no payload
	ErrDecodeFailed = errors.New("decode failed")
)

// Failure codes reported alongside decode errors
const (
	CodeNotInstalled = "not_installed"
	CodeDisabled     = "disabled"
	CodeExitStatus   = "exit_status"
	CodeNoSymbol     = "no_symbol"
	CodeTimeout      = "timeout"
	CodeUnreadable   = "unreadable_image"
)

// Payload is the data decoded from a symbol
type Payload struct {
	Text      string
	Symbology string
	Decoder   string
}

// Decoder extracts the encoded payload from an image file
type Decoder interface {
	// Decode returns the payload, or an error wrapping ErrDecodeFailed or
	// ErrDecodeUnavailable. It never returns an empty payload without error.
	Decode(ctx context.Context, imagePath string) (*Payload, error)
	Name() string
}

// ImageLoader reads an image file into a pixel buffer
type ImageLoader func(path string) (image.Image, error)

// Failure is the diagnostic a decoder attaches to its error
type Failure struct {
	Decoder    string
	Code       string
	Diagnostic string
	Err        error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %v (%s)", f.Decoder, f.Err, f.Code)
	if f.Diagnostic != "" {
		msg += ": " + f.Diagnostic
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func failed(decoder, code, diagnostic string) error {
	return &Failure{Decoder: decoder, Code: code, Diagnostic: diagnostic, Err: ErrDecodeFailed}
}

func unavailable(decoder, code, diagnostic string) error {
	return &Failure{Decoder: decoder, Code: code, Diagnostic: diagnostic, Err: ErrDecodeUnavailable}
}

// FailureCode returns the diagnostic code carried by err, if any
func FailureCode(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}

// Mode selects which decoders New wires up
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeExec  Mode = "exec"
	ModeZXing Mode = "zxing"
	ModeNone  Mode = "none"
)

// ParseMode parses a decoder mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeExec, ModeZXing, ModeNone:
		return m, nil
	}
	return "", fmt.Errorf("unknown decoder mode %q", s)
}

// New builds the decoder for mode. Auto tries the external command first and
// falls back to the in-process reader.
func New(mode Mode, command string, loader ImageLoader) (Decoder, error) {
	switch mode {
	case ModeExec:
		return NewExecDecoder(command)
	case ModeZXing:
		return NewZXingDecoder(loader), nil
	case ModeNone:
		return Disabled(), nil
	case ModeAuto:
		execDecoder, err := NewExecDecoder(command)
		if err != nil {
			return nil, err
		}
		return NewChain(execDecoder, NewZXingDecoder(loader)), nil
	}
	return nil, fmt.Errorf("unknown decoder mode %q", mode)
}

type disabled struct{}

// Disabled returns a decoder that always reports ErrDecodeUnavailable
func Disabled() Decoder {
	return disabled{}
}

func (disabled) Name() string { return "none" }

func (disabled) Decode(ctx context.Context, _ string) (*Payload, error) {
	return nil, unavailable("none", CodeDisabled, "decoding is disabled")
}

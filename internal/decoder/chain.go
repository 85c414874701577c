package decoder

import (
	"context"
	"errors"
	"strings"
)

// chain tries decoders in order until one produces a payload
type chain struct {
	decoders []Decoder
}

// NewChain creates a decoder that falls back through decoders. The result
// is ErrDecodeUnavailable only if every decoder was unavailable; if any ran
// and failed, the last such failure is returned.
func NewChain(decoders ...Decoder) Decoder {
	return &chain{decoders: decoders}
}

func (c *chain) Name() string {
	names := make([]string, len(c.decoders))
	for i, d := range c.decoders {
		names[i] = d.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *chain) Decode(ctx context.Context, imagePath string) (*Payload, error) {
	var lastFailure, lastUnavailable error
	for _, d := range c.decoders {
		if err := ctx.Err(); err != nil {
			return nil, failed(c.Name(), CodeTimeout, err.Error())
		}
		payload, err := d.Decode(ctx, imagePath)
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, ErrDecodeUnavailable) {
			lastUnavailable = err
			continue
		}
		lastFailure = err
	}
	if lastFailure != nil {
		return nil, lastFailure
	}
	if lastUnavailable != nil {
		return nil, lastUnavailable
	}
	return nil, unavailable(c.Name(), CodeDisabled, "no decoders configured")
}

package decoder

import (
	"context"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
)

// zxingDecoder reads Data Matrix symbols in-process with gozxing
type zxingDecoder struct {
	load ImageLoader
}

// NewZXingDecoder creates an in-process Data Matrix decoder
func NewZXingDecoder(loader ImageLoader) Decoder {
	return &zxingDecoder{load: loader}
}

func (d *zxingDecoder) Name() string {
	return "zxing"
}

type zxingResult struct {
	payload *Payload
	err     error
}

// Decode runs the reader on its own goroutine so a slow decode never
// outlives ctx for the caller
func (d *zxingDecoder) Decode(ctx context.Context, imagePath string) (*Payload, error) {
	if d.load == nil {
		return nil, unavailable(d.Name(), CodeNotInstalled, "no image loader configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, failed(d.Name(), CodeTimeout, err.Error())
	}

	done := make(chan zxingResult, 1)
	go func() {
		payload, err := d.decode(imagePath)
		done <- zxingResult{payload: payload, err: err}
	}()

	select {
	case r := <-done:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, failed(d.Name(), CodeTimeout, ctx.Err().Error())
	}
}

func (d *zxingDecoder) decode(imagePath string) (*Payload, error) {
	img, err := d.load(imagePath)
	if err != nil {
		return nil, failed(d.Name(), CodeUnreadable, err.Error())
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, failed(d.Name(), CodeUnreadable, err.Error())
	}

	reader := datamatrix.NewDataMatrixReader()
	result, err := reader.Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	if err != nil {
		// Tightly cropped symbols decode better as a pure barcode
		result, err = reader.Decode(bmp, map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_PURE_BARCODE: true,
		})
	}
	if err != nil {
		return nil, failed(d.Name(), CodeNoSymbol, err.Error())
	}
	if result.GetText() == "" {
		return nil, failed(d.Name(), CodeNoSymbol, "empty payload")
	}
	return &Payload{Text: result.GetText(), Symbology: "DataMatrix", Decoder: d.Name()}, nil
}

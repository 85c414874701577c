package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Axis is the direction a scan line travels
type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// ParseAxis parses an axis name; "row" and "column" are accepted aliases
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "horizontal", "row":
		return AxisHorizontal, nil
	case "vertical", "column", "col":
		return AxisVertical, nil
	}
	return "", fmt.Errorf("unknown axis %q", s)
}

// Channel selects which intensity a scan line samples
type Channel string

const (
	ChannelRed   Channel = "red"
	ChannelGreen Channel = "green"
	ChannelBlue  Channel = "blue"
	ChannelGray  Channel = "gray"
)

// ParseChannel parses a channel name
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r":
		return ChannelRed, nil
	case "green", "g":
		return ChannelGreen, nil
	case "blue", "b":
		return ChannelBlue, nil
	case "gray", "grey", "luma":
		return ChannelGray, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// PathSource records how a traversal was chosen
type PathSource string

const (
	SourceFixed   PathSource = "fixed"
	SourceLocated PathSource = "located"
)

// Traversal specifies a straight scan path through the image. Coordinates are
// relative to the image bounds' minimum point. Index is the row for a
// horizontal path and the column for a vertical one; From and To bound the
// samples along the path, with To == 0 meaning "to the image edge".
type Traversal struct {
	Axis    Axis
	Index   int
	From    int
	To      int
	Channel Channel
	Source  PathSource
}

// DefaultTraversal is the first image row, red channel
func DefaultTraversal() Traversal {
	return Traversal{
		Axis:    AxisHorizontal,
		Index:   0,
		Channel: ChannelRed,
		Source:  SourceFixed,
	}
}

func (t Traversal) validate() error {
	if _, err := ParseAxis(string(t.Axis)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTraversal, err)
	}
	if _, err := ParseChannel(string(t.Channel)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTraversal, err)
	}
	if t.Index < 0 || t.From < 0 || t.To < 0 {
		return fmt.Errorf("%w: negative coordinate", ErrInvalidTraversal)
	}
	if t.To != 0 && t.To <= t.From {
		return fmt.Errorf("%w: empty span [%d,%d)", ErrInvalidTraversal, t.From, t.To)
	}
	return nil
}

// ScanLine is an ordered sequence of single-channel samples along a traversal
type ScanLine struct {
	Samples []uint8
	Path    Traversal
}

// Len returns the number of samples
func (s ScanLine) Len() int {
	return len(s.Samples)
}

// Ints returns the samples as ints, the form the scan line is reported in
func (s ScanLine) Ints() []int {
	out := make([]int, len(s.Samples))
	for i, v := range s.Samples {
		out[i] = int(v)
	}
	return out
}

// ExtractScanLine samples img along t
func ExtractScanLine(img image.Image, t Traversal) (ScanLine, error) {
	if img == nil {
		return ScanLine{}, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return ScanLine{}, fmt.Errorf("%w: %dx%d", ErrInvalidImage, width, height)
	}
	if err := t.validate(); err != nil {
		return ScanLine{}, err
	}

	length, breadth := width, height
	if t.Axis == AxisVertical {
		length, breadth = height, width
	}
	if t.Index >= breadth {
		return ScanLine{}, fmt.Errorf("%w: index %d outside %d", ErrInvalidTraversal, t.Index, breadth)
	}
	to := t.To
	if to == 0 {
		to = length
	}
	if to > length || t.From >= to {
		return ScanLine{}, fmt.Errorf("%w: span [%d,%d) outside %d", ErrInvalidTraversal, t.From, to, length)
	}

	samples := make([]uint8, 0, to-t.From)
	for i := t.From; i < to; i++ {
		x, y := bounds.Min.X+i, bounds.Min.Y+t.Index
		if t.Axis == AxisVertical {
			x, y = bounds.Min.X+t.Index, bounds.Min.Y+i
		}
		samples = append(samples, channelAt(img, x, y, t.Channel))
	}

	path := t
	path.To = to
	return ScanLine{Samples: samples, Path: path}, nil
}

// channelAt returns one 8-bit channel of the pixel at (x, y)
func channelAt(img image.Image, x, y int, channel Channel) uint8 {
	if gray, ok := img.(*image.Gray); ok {
		return gray.GrayAt(x, y).Y
	}
	if channel == ChannelGray {
		return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	switch channel {
	case ChannelGreen:
		return c.G
	case ChannelBlue:
		return c.B
	default:
		return c.R
	}
}

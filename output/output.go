// Package output writes simulated images to disk. The format is selected
// by file extension: 16-bit grayscale PNG for viewing, raw float32 dumps
// (optionally zstd compressed) for further processing.
package output

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"laue/sim"
)

// Magic tag opening every raw float dump.
const rawMagic = "LAUE"

// WriteImage writes an image to path, selecting the format from the file
// extension: .png for a 16-bit grayscale rendering, .bin for a raw float32
// dump and .bin.zst for the same dump compressed with zstd.
func WriteImage(path string, img *sim.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".png"):
		return EncodePNG16(f, img)
	case strings.HasSuffix(path, ".bin.zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		if err := EncodeRaw(zw, img); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	case strings.HasSuffix(path, ".bin"):
		return EncodeRaw(f, img)
	}
	return fmt.Errorf("output: unsupported image format for %q", path)
}

// EncodePNG16 renders the image as 16-bit grayscale PNG. Intensities are
// scaled linearly so that the brightest pixel maps to full white; an all
// zero image stays black.
func EncodePNG16(w io.Writer, img *sim.Image) error {
	var maxVal float64
	for _, v := range img.Pixels {
		if v > maxVal {
			maxVal = v
		}
	}

	scale := 0.0
	if maxVal > 0 {
		scale = 65535.0 / maxVal
	}

	gray := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	for slow := 0; slow < img.Height; slow++ {
		for fast := 0; fast < img.Width; fast++ {
			v := img.At(fast, slow) * scale
			if v < 0 {
				v = 0
			}
			if v > 65535 {
				v = 65535
			}
			offset := slow*gray.Stride + fast*2
			val := uint16(v)
			gray.Pix[offset] = uint8(val >> 8)
			gray.Pix[offset+1] = uint8(val)
		}
	}

	return png.Encode(w, gray)
}

// EncodeRaw writes the image as a little-endian float32 dump: a four byte
// magic tag, the width and height as uint32 and then the pixels row-major.
func EncodeRaw(w io.Writer, img *sim.Image) error {
	if _, err := io.WriteString(w, rawMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(img.Width)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(img.Height)); err != nil {
		return err
	}

	buf := make([]float32, len(img.Pixels))
	for i, v := range img.Pixels {
		buf[i] = float32(v)
	}
	return binary.Write(w, binary.LittleEndian, buf)
}

// DecodeRaw reads an image back from a raw float32 dump. Only the pixel
// data survives a round trip; run metadata is not serialized.
func DecodeRaw(r io.Reader) (*sim.Image, error) {
	magic := make([]byte, len(rawMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != rawMagic {
		return nil, fmt.Errorf("output: not a raw image dump (bad magic %q)", magic)
	}

	var width, height uint32
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, err
	}

	buf := make([]float32, int(width)*int(height))
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, err
	}

	pixels := make([]float64, len(buf))
	for i, v := range buf {
		pixels[i] = float64(v)
	}

	return &sim.Image{
		Width:  int(width),
		Height: int(height),
		Pixels: pixels,
	}, nil
}

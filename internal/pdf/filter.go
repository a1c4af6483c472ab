package pdf

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
)

// MaxDecodedSize caps the size of one decoded stream.
var MaxDecodedSize int64 = 256 << 20

// terminalFilters are image codecs. Decoding stops before them.
var terminalFilters = map[Name]bool{
	filter.DCT:      true,
	filter.JPX:      true,
	filter.CCITTFax: true,
	filter.JBIG2:    true,
}

// codecs are the filters decoded through pdfcpu.
var codecs = map[Name]bool{
	filter.Flate:     true,
	filter.LZW:       true,
	filter.ASCIIHex:  true,
	filter.ASCII85:   true,
	filter.RunLength: true,
}

// encodable filters can be reapplied by Stream.Replace.
var encodable = map[Name]bool{
	filter.Flate:    true,
	filter.ASCIIHex: true,
	filter.ASCII85:  true,
}

// canonicalFilter maps inline-image abbreviations to full filter names.
func canonicalFilter(n Name) Name {
	switch n {
	case "Fl":
		return filter.Flate
	case "AHx":
		return filter.ASCIIHex
	case "A85":
		return filter.ASCII85
	case "LZW":
		return filter.LZW
	case "RL":
		return filter.RunLength
	case "DCT":
		return filter.DCT
	case "CCF":
		return filter.CCITTFax
	default:
		return n
	}
}

// IsImageFilter reports whether the filter is an image codec that Decode
// leaves in place.
func IsImageFilter(n Name) bool {
	return terminalFilters[canonicalFilter(n)]
}

// filterParams extracts the integer decode parameters pdfcpu understands.
func filterParams(d Dict) map[string]int {
	if len(d) == 0 {
		return nil
	}
	parms := make(map[string]int)
	for k := range d {
		if v, ok := d.IntValue(k); ok {
			parms[string(k)] = v
		}
	}
	return parms
}

func decodeChain(data []byte, chain []FilterSpec) ([]byte, error) {
	out := data
	for _, f := range chain {
		if terminalFilters[f.Name] {
			break
		}
		var err error
		out, err = decodeOne(out, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	if int64(len(out)) > MaxDecodedSize {
		return nil, ErrDecodedTooLarge
	}
	return out, nil
}

func decodeOne(data []byte, f FilterSpec) ([]byte, error) {
	if f.Name == "Crypt" {
		// Only the Identity crypt filter survives decryption.
		return data, nil
	}
	if !codecs[f.Name] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f.Name)
	}

	parms := filterParams(f.Params)
	out, err := runFilter(data, f.Name, parms, false)
	if err != nil && f.Name == filter.Flate && parms["Predictor"] <= 1 {
		if raw, rerr := inflateRaw(data); rerr == nil {
			return raw, nil
		}
	}
	return out, err
}

// runFilter decodes or encodes data with one pdfcpu filter.
func runFilter(data []byte, name Name, parms map[string]int, encode bool) ([]byte, error) {
	fi, err := filter.NewFilter(string(name), parms)
	if err != nil {
		if errors.Is(err, filter.ErrUnsupportedFilter) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
		}
		return nil, err
	}
	var r io.Reader
	if encode {
		r, err = fi.Encode(bytes.NewReader(data))
	} else {
		r, err = fi.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	return readLimited(r)
}

// readLimited reads r up to MaxDecodedSize. A truncated compressed stream
// still yields the bytes recovered before the truncation.
func readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxDecodedSize+1))
	if n > MaxDecodedSize {
		return nil, ErrDecodedTooLarge
	}
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) && buf.Len() > 0 {
			return buf.Bytes(), nil
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// inflateRaw handles writers that emit deflate data without the zlib
// header pdfcpu requires.
func inflateRaw(data []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	return readLimited(fr)
}

// encodeChain encodes data through chain in reverse order. It reports false
// when a filter cannot be encoded, or when predictor parameters would have to
// be honoured for a non-empty payload.
func encodeChain(data []byte, chain []FilterSpec) ([]byte, bool) {
	out := data
	for i := len(chain) - 1; i >= 0; i-- {
		f := chain[i]
		if p, ok := f.Params.IntValue("Predictor"); ok && p > 1 && len(data) > 0 {
			return nil, false
		}
		if !encodable[f.Name] {
			return nil, false
		}
		enc, err := runFilter(out, f.Name, nil, true)
		if err != nil {
			return nil, false
		}
		out = enc
	}
	return out, true
}

// Deflate compresses data with zlib, the encoding FlateDecode expects.
func Deflate(data []byte) []byte {
	out, err := runFilter(data, filter.Flate, nil, true)
	if err != nil {
		// Encoding into memory only fails on allocation errors.
		return nil
	}
	return out
}

// Inflate reverses FlateDecode without predictors.
func Inflate(data []byte) ([]byte, error) {
	return decodeOne(data, FilterSpec{Name: filter.Flate})
}

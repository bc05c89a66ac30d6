// Package audio inspects decoded WAV intermediates: duration for chunk
// planning and loudness metrics for the silence gate.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

var (
	ErrInvalidWAV     = errors.New("invalid wav file")
	ErrUnsupportedWAV = errors.New("unsupported wav format")
)

// Info summarizes a decoded WAV file.
type Info struct {
	SampleRate int
	Channels   int
	Duration   time.Duration
	RMSdBFS    float64
	PeakdBFS   float64
	Frames     int64
}

// SilentBelow reports whether the audio is quieter than thresholdDBFS. The
// peak gets 6 dB of headroom over the RMS threshold so a single click does
// not defeat the gate.
func (i Info) SilentBelow(thresholdDBFS float64) bool {
	if i.Frames == 0 {
		return true
	}
	if math.IsInf(i.RMSdBFS, -1) && math.IsInf(i.PeakdBFS, -1) {
		return true
	}
	return i.RMSdBFS <= thresholdDBFS && i.PeakdBFS <= thresholdDBFS+6
}

// Probe parses path as RIFF/WAVE and measures it in a single pass over the
// data chunk.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	format, data, err := readChunks(f)
	if err != nil {
		return Info{}, err
	}

	peak, sumSquares, samples, err := measure(data, format)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		SampleRate: int(format.sampleRate),
		Channels:   int(format.channels),
	}

	if samples == 0 {
		info.RMSdBFS = math.Inf(-1)
		info.PeakdBFS = math.Inf(-1)
		return info, nil
	}

	info.Frames = samples / int64(format.channels)
	if format.sampleRate > 0 {
		seconds := float64(info.Frames) / float64(format.sampleRate)
		info.Duration = time.Duration(seconds * float64(time.Second))
	}

	rms := math.Sqrt(sumSquares / float64(samples))
	info.RMSdBFS = toDBFS(rms)
	info.PeakdBFS = toDBFS(peak)
	return info, nil
}

type wavFormat struct {
	encoding      uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

func readChunks(f *os.File) (wavFormat, []byte, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return wavFormat{}, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return wavFormat{}, nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, nil, ErrInvalidWAV
	}

	var (
		format  wavFormat
		data    []byte
		hasFmt  bool
		hasData bool
	)

	chunkHeader := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return wavFormat{}, nil, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])
		padded := int64(chunkSize)
		if chunkSize%2 != 0 {
			padded++
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return wavFormat{}, nil, ErrInvalidWAV
			}
			buf := make([]byte, padded)
			if _, err := io.ReadFull(f, buf); err != nil {
				return wavFormat{}, nil, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			format.encoding = binary.LittleEndian.Uint16(buf[0:2])
			format.channels = binary.LittleEndian.Uint16(buf[2:4])
			format.sampleRate = binary.LittleEndian.Uint32(buf[4:8])
			format.bitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			hasFmt = true
		case "data":
			data = make([]byte, chunkSize)
			if _, err := io.ReadFull(f, data); err != nil {
				return wavFormat{}, nil, fmt.Errorf("read wav data: %w", err)
			}
			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return wavFormat{}, nil, fmt.Errorf("seek wav data padding: %w", err)
				}
			}
			hasData = true
		default:
			if _, err := f.Seek(padded, io.SeekCurrent); err != nil {
				return wavFormat{}, nil, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return wavFormat{}, nil, ErrInvalidWAV
	}
	if format.channels == 0 {
		return wavFormat{}, nil, ErrInvalidWAV
	}
	if err := validateFormat(format); err != nil {
		return wavFormat{}, nil, err
	}

	return format, data, nil
}

func validateFormat(format wavFormat) error {
	switch format.encoding {
	case 1: // integer PCM
		switch format.bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case 3: // IEEE float
		switch format.bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}

func measure(data []byte, format wavFormat) (peak, sumSquares float64, samples int64, err error) {
	bytesPerSample := int(format.bitsPerSample / 8)
	if bytesPerSample <= 0 {
		return 0, 0, 0, ErrUnsupportedWAV
	}

	for i := 0; i+bytesPerSample <= len(data); i += bytesPerSample {
		value, err := decodeSample(data[i:i+bytesPerSample], format)
		if err != nil {
			return 0, 0, 0, err
		}

		if abs := math.Abs(value); abs > peak {
			peak = abs
		}
		sumSquares += value * value
		samples++
	}

	return peak, sumSquares, samples, nil
}

func decodeSample(sample []byte, format wavFormat) (float64, error) {
	if format.encoding == 3 {
		switch format.bitsPerSample {
		case 32:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(sample))), nil
		case 64:
			return math.Float64frombits(binary.LittleEndian.Uint64(sample)), nil
		}
		return 0, ErrUnsupportedWAV
	}

	switch format.bitsPerSample {
	case 8:
		return (float64(sample[0]) - 128.0) / 128.0, nil
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(sample))) / 32768.0, nil
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0, nil
	case 32:
		return float64(int32(binary.LittleEndian.Uint32(sample))) / 2147483648.0, nil
	}
	return 0, ErrUnsupportedWAV
}

func toDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Constraint violations are distinct from structural failures so callers can
// present distinct diagnostics. The messages are part of the upload API
// contract.
var (
	ErrNotMono       = errors.New("Audio must be mono (1 channel)")
	ErrNot16Bit      = errors.New("Audio must be 16-bit PCM")
	ErrBadSampleRate = errors.New("Sample rate must be 8kHz, 16kHz, or 44.1kHz")
)

// allowed sample rates for uploaded audio
var allowedSampleRates = map[uint32]bool{
	8000:  true,
	16000: true,
	44100: true,
}

// Format describes the PCM format declared in a WAV header.
type Format struct {
	AudioFormat   uint16 // 1 = linear PCM
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ReadFormat parses the RIFF/WAVE header from r and returns the declared
// format. It reads only the header chunks, never the audio payload.
func ReadFormat(r io.Reader) (*Format, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	// Walk chunks until the fmt chunk is found
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			return nil, fmt.Errorf("reading chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		if chunkID != "fmt " {
			// Skip over non-fmt chunks (chunks are word-aligned)
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("skipping %q chunk: %w", chunkID, err)
			}
			continue
		}

		if chunkSize < 16 {
			return nil, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
		}

		var fmtData [16]byte
		if _, err := io.ReadFull(r, fmtData[:]); err != nil {
			return nil, fmt.Errorf("reading fmt chunk: %w", err)
		}

		return &Format{
			AudioFormat:   binary.LittleEndian.Uint16(fmtData[0:2]),
			Channels:      binary.LittleEndian.Uint16(fmtData[2:4]),
			SampleRate:    binary.LittleEndian.Uint32(fmtData[4:8]),
			BitsPerSample: binary.LittleEndian.Uint16(fmtData[14:16]),
		}, nil
	}
}

// ValidateWAVFile checks that the file at path is a mono, 16-bit linear PCM
// WAV at one of the allowed sample rates. Constraint violations return the
// corresponding sentinel error; any structural read failure is reported as a
// generic invalid-file error. The check is local and synchronous, reading
// only the file header.
func ValidateWAVFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("Invalid WAV file: %v", err)
	}
	defer f.Close()

	format, err := ReadFormat(f)
	if err != nil {
		return fmt.Errorf("Invalid WAV file: %v", err)
	}

	if format.Channels != 1 {
		return ErrNotMono
	}
	if format.AudioFormat != 1 || format.BitsPerSample != 16 {
		return ErrNot16Bit
	}
	if !allowedSampleRates[format.SampleRate] {
		return ErrBadSampleRate
	}
	return nil
}

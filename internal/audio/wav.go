package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// PCM format shared by synthesized clips and the player.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

const bytesPerSecond = SampleRate * ChannelCount * BitDepth / 8

// PCMDuration is the play time of n bytes of PCM in the player format.
func PCMDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / bytesPerSecond
}

// EncodeWAV wraps PCM in a minimal RIFF/WAVE header.
func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(ChannelCount))
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(bytesPerSecond))
	binary.Write(&buf, binary.LittleEndian, uint16(ChannelCount*BitDepth/8))
	binary.Write(&buf, binary.LittleEndian, uint16(BitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// ExtractPCM strips the WAV/RIFF header and returns raw PCM data.
func ExtractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	// Walk chunks to find the "data" chunk.
	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))

		if chunkID == "data" {
			start := pos + 8
			end := min(start+chunkSize, len(wav))
			return wav[start:end], nil
		}

		pos += 8 + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}

// Chirp synthesizes a short warbling tone standing in for a recorded
// voice clip. seed varies the pitch so different clips sound different.
func Chirp(d time.Duration, seed uint32) []byte {
	n := int(d.Seconds() * SampleRate)
	base := 220 + float64(seed%8)*40
	pcm := make([]byte, 0, n*2)

	for i := 0; i < n; i++ {
		t := float64(i) / SampleRate
		freq := base * (1 + 0.15*math.Sin(2*math.Pi*3*t))
		// Fade in and out over 20ms to avoid clicks.
		env := math.Min(1, math.Min(t, float64(n-i)/SampleRate)/0.02)
		v := int16(0.3 * env * math.MaxInt16 * math.Sin(2*math.Pi*freq*t))
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
	}
	return EncodeWAV(pcm)
}

package speech

import (
	"encoding/binary"
	"errors"
	"math"
)

// Accepted input format for normalization.
const (
	SampleRate    = 16000
	BitsPerSample = 16
	Channels      = 1
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

// Gain bounds.
const (
	DefaultTargetPeak = 0.6
	DefaultMaxGain    = 8.0
	minGain           = 1.05
)

// wavInfo locates the PCM payload inside a WAV file.
type wavInfo struct {
	format     uint16
	channels   uint16
	sampleRate uint32
	bits       uint16
	dataOff    int
	dataLen    int
}

func parseWAV(data []byte) (wavInfo, error) {
	var info wavInfo
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, errNotWAV
	}

	haveFmt := false
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			// Streams written before the length was known often carry a
			// bogus data size; take what is there.
			if id == "data" {
				size = len(data) - body
			} else {
				return info, errors.New("truncated chunk " + id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return info, errors.New("short fmt chunk")
			}
			info.format = binary.LittleEndian.Uint16(data[body:])
			info.channels = binary.LittleEndian.Uint16(data[body+2:])
			info.sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			info.bits = binary.LittleEndian.Uint16(data[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return info, errors.New("data chunk before fmt chunk")
			}
			info.dataOff, info.dataLen = body, size
			return info, nil
		}
		off = body + size + size%2
	}
	return info, errors.New("no data chunk")
}

// ClampTargetPeak limits a configured target peak to [0.1, 0.95].
func ClampTargetPeak(v float64) float64 {
	if v == 0 {
		v = DefaultTargetPeak
	}
	return math.Max(0.1, math.Min(0.95, v))
}

// ClampMaxGain limits a configured gain ceiling to [1, 20].
func ClampMaxGain(v float64) float64 {
	if v == 0 {
		v = DefaultMaxGain
	}
	return math.Max(1, math.Min(20, v))
}

// NormalizeWAV raises the volume of a quiet mono 16 kHz 16-bit PCM recording
// so its loudest sample reaches targetPeak of full scale, amplifying at most
// maxGain times. Input in any other format, silent input, and input that
// would gain less than 5% is returned unchanged with changed false.
func NormalizeWAV(data []byte, targetPeak, maxGain float64) (out []byte, changed bool) {
	info, err := parseWAV(data)
	if err != nil {
		return data, false
	}
	if info.format != 1 || info.channels != Channels || info.sampleRate != SampleRate || info.bits != BitsPerSample {
		return data, false
	}
	if info.dataLen == 0 || info.dataLen%2 != 0 {
		return data, false
	}

	pcm := data[info.dataOff : info.dataOff+info.dataLen]
	peak := 0
	for i := 0; i < len(pcm); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	if peak == 0 {
		return data, false
	}

	desired := math.Floor(math.MaxInt16 * ClampTargetPeak(targetPeak))
	gain := desired / float64(peak)
	if gain <= minGain {
		return data, false
	}
	gain = math.Min(gain, ClampMaxGain(maxGain))

	out = make([]byte, len(data))
	copy(out, data)
	dst := out[info.dataOff : info.dataOff+info.dataLen]
	for i := 0; i < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) * gain
		s = math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Trunc(s)))
		binary.LittleEndian.PutUint16(dst[i:], uint16(int16(s)))
	}
	return out, true
}

// EncodeWAV wraps mono 16 kHz 16-bit samples in a WAV container.
func EncodeWAV(samples []int16) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], Channels)
	binary.LittleEndian.PutUint32(buf[24:], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:], SampleRate*Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[32:], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[34:], BitsPerSample)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+2*i:], uint16(s))
	}
	return buf
}

package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// DefaultVoiceThreshold is the RMS level above which a PCM16 buffer is
// treated as speech. Amplitude-only, so constant wideband noise can trip it.
const DefaultVoiceThreshold = 0.02

// EncodeBase64 encodes binary audio for embedding in a JSON message.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a base64 audio payload back to binary.
func DecodeBase64(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}

// Resample converts PCM16 audio between sample rates using linear
// interpolation between the two nearest source samples. It is a voice-band
// approximation, not a band-limited resampler. When the rates already match
// the input is returned untouched.
func Resample(data []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return data
	}

	srcCount := len(data) / bytesPerSample
	dstCount := srcCount * toRate / fromRate
	out := make([]byte, dstCount*bytesPerSample)

	ratio := float64(toRate) / float64(fromRate)
	for i := 0; i < dstCount; i++ {
		srcIndex := float64(i) / ratio
		lo := int(srcIndex)
		hi := lo + 1
		if hi >= srcCount {
			hi = srcCount - 1
		}
		frac := srcIndex - float64(lo)

		a := float64(sampleAt(data, lo))
		b := float64(sampleAt(data, hi))
		v := math.Round(a + (b-a)*frac)
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(int16(v)))
	}
	return out
}

// RMS computes the root mean square of a PCM16 buffer with samples
// normalized to [-1, 1]. An empty buffer has RMS 0.
func RMS(data []byte) float64 {
	count := len(data) / bytesPerSample
	if count == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < count; i++ {
		s := float64(sampleAt(data, i)) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(count))
}

// IsVoiceActive classifies a PCM16 buffer as speech when its RMS exceeds
// threshold. Pass DefaultVoiceThreshold unless tuned otherwise.
func IsVoiceActive(data []byte, threshold float64) bool {
	return RMS(data) > threshold
}

// SplitChunks slices a PCM16 buffer into fixed-duration segments of
// chunkMs at sampleRate. The final segment may be shorter; nothing is padded.
func SplitChunks(data []byte, chunkMs, sampleRate int) [][]byte {
	chunkBytes := chunkMs * sampleRate * bytesPerSample / 1000
	if chunkBytes <= 0 || len(data) == 0 {
		return nil
	}

	chunks := make([][]byte, 0, (len(data)+chunkBytes-1)/chunkBytes)
	for start := 0; start < len(data); start += chunkBytes {
		end := start + chunkBytes
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

func sampleAt(data []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
}

package audio

import "fmt"

// ResamplePCM16 resamples PCM16 audio data from one sample rate to another
// using linear interpolation. Input and output are little-endian 16-bit
// signed PCM samples.
func ResamplePCM16(input []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		result := make([]byte, len(input))
		copy(result, input)
		return result, nil
	}

	inputSamples, err := PCMToInt16(input)
	if err != nil {
		return nil, err
	}
	numInputSamples := len(inputSamples)
	if numInputSamples == 0 {
		return []byte{}, nil
	}

	numOutputSamples := int(float64(numInputSamples) * float64(toRate) / float64(fromRate))
	if numOutputSamples == 0 {
		return []byte{}, nil
	}

	outputSamples := make([]int16, numOutputSamples)
	ratio := float64(fromRate) / float64(toRate)

	for i := range numOutputSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= numInputSamples-1 {
			outputSamples[i] = inputSamples[numInputSamples-1]
		} else {
			s0 := float64(inputSamples[srcIdx])
			s1 := float64(inputSamples[srcIdx+1])
			outputSamples[i] = int16(s0 + frac*(s1-s0))
		}
	}

	return Int16ToPCM(outputSamples), nil
}

package util

import "math"

const (
	sigmoidTableSize = 512
	maxSigmoid       = 8
	logTableSize     = 512
)

var (
	sigmoidTable [sigmoidTableSize + 1]float32
	logTable     [logTableSize + 1]float32
)

func init() {
	for i := 0; i <= sigmoidTableSize; i += 1 {
		x := float64(i*2*maxSigmoid)/sigmoidTableSize - maxSigmoid
		sigmoidTable[i] = float32(1.0 / (1.0 + math.Exp(-x)))
	}
	for i := 0; i <= logTableSize; i += 1 {
		x := (float64(i) + 1e-5) / logTableSize
		logTable[i] = float32(math.Log(x))
	}
}

// Sigmoid is a table lookup of the logistic function, clamped to
// 0 and 1 outside [-8, 8].
func Sigmoid(x float32) float32 {
	if x < -maxSigmoid {
		return 0.0
	}
	if x > maxSigmoid {
		return 1.0
	}
	i := int((x + maxSigmoid) * sigmoidTableSize / maxSigmoid / 2)
	return sigmoidTable[i]
}

// Log is a table lookup of the natural log on (0, 1]; values above 1
// return 0.
func Log(x float32) float32 {
	if x > 1.0 {
		return 0.0
	}
	i := int(x * logTableSize)
	return logTable[i]
}

// StdLog is log(x + 1e-5), used for scores so that zero probabilities
// stay finite.
func StdLog(x float32) float32 {
	return float32(math.Log(float64(x) + 1e-5))
}

// Package vad classifies an audio stream as talking or silent from its signal
// level.
package vad

import "math"

// MinLevelDb is reported for an all-zero frame instead of negative infinity.
const MinLevelDb = -120.0

// LevelDb converts a frame of centered samples (full scale 1.0) to a single
// logarithmic level: RMS in decibels relative to full scale.
func LevelDb(samples []float64) float64 {
	if len(samples) == 0 {
		return MinLevelDb
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return MinLevelDb
	}
	db := 20 * math.Log10(rms)
	if db < MinLevelDb {
		return MinLevelDb
	}
	return db
}

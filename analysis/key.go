package analysis

import (
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/engine"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// Key is the estimated key of a recording. An empty Key means none was found.
type Key struct {
	Key      string  `json:"key"`
	Scale    string  `json:"scale"`
	Strength float64 `json:"keyStrength"`
}

// KeyDetector estimates the key from the mean chroma of a sequence
type KeyDetector struct {
	engine engine.Engine
	logger logging.Logger
}

// NewKeyDetector creates a key detector. A nil logger uses the global one.
func NewKeyDetector(eng engine.Engine, logger logging.Logger) *KeyDetector {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &KeyDetector{
		engine: eng,
		logger: logger.WithFields(logging.Fields{"component": "key_detector"}),
	}
}

// Detect never fails; problems are logged and yield an empty Key
func (kd *KeyDetector) Detect(pcp [][]float64) Key {
	mean, err := common.MeanFrame(pcp)
	if err != nil {
		kd.logger.Warn("No usable chroma for key estimation", logging.Fields{"error": err.Error()})
		return Key{}
	}

	res, err := kd.engine.KeyExtractor(mean)
	if err != nil {
		kd.logger.Warn("Key estimation failed", logging.Fields{"error": err.Error()})
		return Key{}
	}

	kd.logger.Debug("Key estimated", logging.Fields{
		"key":      res.Key,
		"scale":    res.Scale,
		"strength": res.Strength,
	})
	return Key{Key: res.Key, Scale: res.Scale, Strength: res.Strength}
}

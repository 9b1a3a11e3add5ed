package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"rssi-anomaly/internal/models"
)

// Bundle загруженные при старте артефакты. Неизменяем и разделяется
// всеми запросами без блокировок.
type Bundle struct {
	Scaler    *Scaler
	Predictor Predictor

	// Fingerprint sha256 содержимого артефактов; различает результаты разных моделей в кэше
	Fingerprint string
}

// Load загружает оба артефакта и сверяет длину последовательности модели
func Load(scalerPath, modelPath string, sequenceLength int) (*Bundle, error) {
	scalerData, err := os.ReadFile(scalerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read scaler %s: %v", models.ErrArtifactLoad, scalerPath, err)
	}
	scaler, err := ParseScaler(scalerData, scalerPath)
	if err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read model %s: %v", models.ErrArtifactLoad, modelPath, err)
	}
	predictor, err := ParseModel(modelData, modelPath)
	if err != nil {
		return nil, err
	}

	if predictor.SequenceLength() != sequenceLength {
		return nil, fmt.Errorf("%w: model sequence length %d does not match configured %d",
			models.ErrArtifactLoad, predictor.SequenceLength(), sequenceLength)
	}

	return &Bundle{
		Scaler:      scaler,
		Predictor:   predictor,
		Fingerprint: Fingerprint(scalerData, modelData),
	}, nil
}

// Fingerprint sha256 содержимого артефактов, каждая часть с префиксом длины
func Fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Ready сообщает, загружены ли оба артефакта
func (b *Bundle) Ready() bool {
	return b != nil && b.Scaler != nil && b.Predictor != nil
}

package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	json "github.com/goccy/go-json"
)

// inventoryEnvelope is the service-inventory wrapper agents submit.
type inventoryEnvelope struct {
	ServerName string                 `json:"server_name"`
	Timestamp  int64                  `json:"timestamp"`
	Payload    map[string]interface{} `json:"payload"`
}

// parseInventory validates a snapshot envelope and redacts the payload.
// Secrets an agent mistakenly includes must never reach the database.
func (r *Registry) parseInventory(body []byte) (*Output, error) {
	var env inventoryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformed
	}
	if env.ServerName == "" || env.Payload == nil {
		return nil, ErrMalformed
	}

	collectedAt := r.now()
	if env.Timestamp > 0 {
		collectedAt = time.Unix(env.Timestamp, 0).UTC()
	}

	sum := sha256.Sum256(body)

	return &Output{
		Source: SourceInventory,
		Snapshot: &Snapshot{
			ServerName:  env.ServerName,
			CollectedAt: collectedAt,
			Payload:     RedactSecrets(env.Payload),
			RawBytes:    len(body),
			BodyHash:    hex.EncodeToString(sum[:]),
		},
	}, nil
}

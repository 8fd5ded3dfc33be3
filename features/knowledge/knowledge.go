package knowledge

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Source values partition chunks by origin. Brand knowledge is injected into
// every generation prompt; everything else is retrieved by similarity.
const (
	SourceBrandKnowledge = "brand_knowledge"
	SourceUpload         = "upload"
)

// DefaultCategory is what the extraction model falls back to when it cannot
// classify a point; scoring treats it as a weak signal.
const DefaultCategory = "general"

// Chunk is a scored, embedded fragment of distilled text. It is the source
// of truth for retrieval augmentation; a chunk without a vector is stored
// but never retrievable.
type Chunk struct {
	ID               string    `json:"id"`
	AgentID          string    `json:"agent_id"`
	Content          string    `json:"content"`
	Summary          string    `json:"summary"`
	Category         string    `json:"category"`
	Keywords         []string  `json:"keywords"`
	Source           string    `json:"source"`
	SourceType       string    `json:"source_type"`
	SourceIdentifier string    `json:"source_identifier"`
	Vector           []float32 `json:"-"`
	Confidence       float64   `json:"confidence"`
	CreatedAt        time.Time `json:"created_at"`
}

// ContentHash keys create-job idempotency: the same point from the same
// source always maps to the same identity, no matter how many times the
// distillation job is redelivered.
func (c *Chunk) ContentHash() string {
	h := sha256.Sum256([]byte(c.SourceIdentifier + "\x00" + c.Content))
	return fmt.Sprintf("%x", h)
}

// DistillPayload is the job contract on the distillation queue.
type DistillPayload struct {
	AgentID          string `json:"agent_id"`
	RawText          string `json:"raw_text"`
	Source           string `json:"source"`
	SourceType       string `json:"source_type"`
	SourceIdentifier string `json:"source_identifier"`
}

// Chunk-persistence job actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ChunkJob is the job contract on the chunk-persistence queue.
type ChunkJob struct {
	Action string `json:"action"`
	Chunk  Chunk  `json:"chunk"`
}

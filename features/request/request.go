package request

// ContentRequest lifecycle. A failed run returns the request to a
// resubmittable state; only finalize marks it completed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type ContentRequest struct {
	ID                 string    `json:"id"`
	AgentID            string    `json:"agent_id"`
	Topic              string    `json:"topic"`
	BriefDescription   string    `json:"brief_description"`
	TargetLength       int       `json:"target_length"`
	Layout             string    `json:"layout"`
	Approved           bool      `json:"approved"`
	IsCompleted        bool      `json:"is_completed"`
	Embedding          []float64 `json:"-"`
	GeneratedContentID *string   `json:"generated_content_id,omitempty"`
	Status             string    `json:"status"`
	StatusMessage      string    `json:"status_message,omitempty"`
	CreatedAt          string    `json:"created_at,omitempty"`
	UpdatedAt          string    `json:"updated_at,omitempty"`
}

// GeneratePayload is the job contract on the generation queue. The worker
// reloads the request by ID; the job carries no content of its own.
type GeneratePayload struct {
	RequestID string `json:"request_id"`
}

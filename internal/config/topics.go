package config

const (
	// QueueGenerate carries content-generation jobs (one workflow run each).
	QueueGenerate = "content.generate"

	// QueueDistill carries knowledge-distillation jobs over raw uploaded text.
	QueueDistill = "knowledge.distill"

	// QueueChunks carries knowledge-chunk persistence jobs (create/update/delete).
	QueueChunks = "knowledge.chunks"

	// QueueStatus carries workflow status events for the projection consumer.
	QueueStatus = "content.status"
)

// Queues lists every queue the runtime pre-creates at bootstrap.
var Queues = []string{QueueGenerate, QueueDistill, QueueChunks, QueueStatus}

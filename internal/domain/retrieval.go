package domain

import "fmt"

// VectorRecord is the unit stored in the vector index. Records are partitioned
// by tenant namespace; the id is deterministic ("{documentID}-chunk-{n}") so
// upserts are idempotent and deletion can reconstruct the id sequence.
type VectorRecord struct {
	ID         string
	Embedding  []float32
	Text       string
	DocumentID string
	TenantID   string
	ChunkIndex int
}

// VectorRecordID builds the deterministic record id for a document chunk.
func VectorRecordID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, chunkIndex)
}

// RetrievalMatch is one ranked result of a vector query, discarded after the
// chat turn that produced it.
type RetrievalMatch struct {
	Score      float64
	Text       string
	DocumentID string
	ChunkIndex int
}

// Citation references a retrieved chunk that informed an answer.
type Citation struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"documentId"`
}

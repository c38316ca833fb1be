package model

// DocumentChunk is one indexed piece of a reference document
type DocumentChunk struct {
	ID      string
	Content string
	DocType string
	Source  string
	Page    string

	Similarity float32
}

package models

// Chunk represents one passage cut from a document
type Chunk struct {
	Source  string
	Index   int
	Page    int
	Content string
}

// CharLength returns the passage length in runes
func (c Chunk) CharLength() int {
	return len([]rune(c.Content))
}

// Match is one similarity-search hit with its metadata
type Match struct {
	ID      string
	Content string
	Source  string
	Page    int
	Score   float32
}

// QueryResponse is what the ask endpoint returns
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

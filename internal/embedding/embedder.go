package embedding

// Embedder converts free text into a fixed-length numeric vector.
// The knowledge base treats embedding as an injected capability and never
// implements a model of its own.
type Embedder interface {
	Name() string
	Embed(text string) ([]float64, error)
}

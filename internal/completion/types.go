package completion

// Chunk is one streamed delta from the model. Err is set on the final chunk
// when the stream terminated abnormally; the channel is closed afterwards.
type Chunk struct {
	Text string
	Err  error
}

type Config struct {
	APIKey string
	Model  string
}

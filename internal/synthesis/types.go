package synthesis

type Config struct {
	APIKey string
	Model  string
	Voice  string
}

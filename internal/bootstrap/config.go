package bootstrap

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string

	DeepgramAPIKey string
	OpenAIAPIKey   string

	STTModel    string
	STTLanguage string

	LLMModel string

	TTSModel string
	TTSVoice string

	DataDir  string
	LogLevel string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8000"),

		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),

		STTModel:    getEnv("STT_MODEL", "nova-2"),
		STTLanguage: getEnv("STT_LANGUAGE", "en-US"),

		LLMModel: getEnv("LLM_MODEL", "gpt-4o-mini"),

		TTSModel: getEnv("TTS_MODEL", "tts-1"),
		TTSVoice: getEnv("TTS_VOICE", "shimmer"),

		DataDir:  getEnv("DATA_DIR", "./data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

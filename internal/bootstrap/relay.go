package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/eleven-am/voice-relay/internal/completion"
	"github.com/eleven-am/voice-relay/internal/health"
	"github.com/eleven-am/voice-relay/internal/media"
	"github.com/eleven-am/voice-relay/internal/relay"
	"github.com/eleven-am/voice-relay/internal/synthesis"
	"github.com/eleven-am/voice-relay/internal/transcription"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideSTTConfig(cfg *Config) transcription.Config {
	return transcription.Config{
		APIKey: cfg.DeepgramAPIKey,
	}
}

func ProvideSTTOptions(cfg *Config) transcription.SessionOptions {
	opts := transcription.DefaultSessionOptions()
	if cfg.STTModel != "" {
		opts.Model = cfg.STTModel
	}
	if cfg.STTLanguage != "" {
		opts.Language = cfg.STTLanguage
	}
	return opts
}

func ProvideLLMClient(cfg *Config) (*completion.Client, error) {
	return completion.New(completion.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.LLMModel,
	})
}

func ProvideTTSClient(cfg *Config) (*synthesis.Client, error) {
	return synthesis.New(synthesis.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.TTSModel,
		Voice:  cfg.TTSVoice,
	})
}

func ProvideMediaStore(cfg *Config) (*media.Store, error) {
	return media.NewStore(cfg.DataDir)
}

func ProvideRelayManager(
	sttConfig transcription.Config,
	sttOptions transcription.SessionOptions,
	llm *completion.Client,
	synth *synthesis.Client,
	store *media.Store,
	logger *slog.Logger,
) *relay.Manager {
	return relay.NewManager(relay.ManagerConfig{
		STTConfig:  sttConfig,
		STTOptions: sttOptions,
		LLM:        llm,
		Synth:      synth,
		Media:      store,
		Log:        logger,
	})
}

func ProvideRelayHandler(manager *relay.Manager, logger *slog.Logger) *relay.Handler {
	return relay.NewHandler(manager, logger)
}

func ProvideHealthHandler(manager *relay.Manager) *health.Handler {
	return health.NewHandler(manager)
}

func RegisterRoutes(e *echo.Echo, relayHandler *relay.Handler, healthHandler *health.Handler) {
	relayHandler.RegisterRoutes(e)
	healthHandler.RegisterRoutes(e)
}

func RegisterShutdown(lc fx.Lifecycle, manager *relay.Manager, store *media.Store) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := manager.Close(); err != nil {
				return err
			}
			return store.Close()
		},
	})
}

var RelayModule = fx.Options(
	fx.Provide(
		ProvideSTTConfig,
		ProvideSTTOptions,
		ProvideLLMClient,
		ProvideTTSClient,
		ProvideMediaStore,
		ProvideRelayManager,
		ProvideRelayHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RegisterShutdown),
)

func Run() {
	fx.New(
		fx.Provide(
			LoadConfig,
			ProvideLogger,
		),
		ServerModule,
		RelayModule,
	).Run()
}

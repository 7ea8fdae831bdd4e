package config

const (
	defaultStagingDir         = "~/.local/share/vigil/staging"
	defaultLogDir             = "~/.local/share/vigil/logs"
	defaultIndexPath          = "~/.local/share/vigil/manual_index.db"
	defaultWindowSeconds      = 300
	defaultOverlapSeconds     = 30
	defaultTopK               = 4
	defaultChunkChars         = 1200
	defaultAnalysisWorkers    = 2
	defaultInferenceSlots     = 1
	defaultMaxAttempts        = 3
	defaultPromptTokenBudget  = 3000
	defaultTranscriberBinary  = "whisper-cli"
	defaultFFmpegBinary       = "ffmpeg"
	defaultLanguage           = "en"
	defaultLLMBaseURL         = "http://127.0.0.1:8080/v1/chat/completions"
	defaultLLMModel           = "llama-3.1-8b-instruct"
	defaultLLMTimeoutSeconds  = 120
	defaultEmbeddingsBaseURL  = "http://127.0.0.1:8080/v1"
	defaultEmbeddingsModel    = "nomic-embed-text-v1.5"
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			IndexPath:  defaultIndexPath,
		},
		Segmenter: Segmenter{
			WindowSeconds:  defaultWindowSeconds,
			OverlapSeconds: defaultOverlapSeconds,
		},
		Retrieval: Retrieval{
			TopK:       defaultTopK,
			ChunkChars: defaultChunkChars,
		},
		Analysis: Analysis{
			Workers:                defaultAnalysisWorkers,
			InferenceSlots:         defaultInferenceSlots,
			MaxAttempts:            defaultMaxAttempts,
			PromptTokenBudget:      defaultPromptTokenBudget,
			EscalateOnDisagreement: true,
		},
		Transcriber: Transcriber{
			Binary:       defaultTranscriberBinary,
			FFmpegBinary: defaultFFmpegBinary,
			Language:     defaultLanguage,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Embeddings: Embeddings{
			BaseURL: defaultEmbeddingsBaseURL,
			Model:   defaultEmbeddingsModel,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

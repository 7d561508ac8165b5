package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 3,
		},
		Telegram: TelegramConfig{
			ParseMode: "Markdown",
		},
		Memory: MemoryConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
			SearchLimit:    5,
		},
		Storage: StorageConfig{
			Endpoint:       "localhost:9000",
			Bucket:         "membot",
			UseSSL:         false,
			TimeoutSeconds: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9190",
		},
	}
}

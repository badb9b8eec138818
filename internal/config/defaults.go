package config

const (
	defaultConfigPath              = "~/.config/linkhaul/config.toml"
	defaultDataDir                 = "~/.local/share/linkhaul"
	defaultLogDir                  = "~/.local/share/linkhaul/logs"
	defaultDownloadDir             = "~/Downloads/linkhaul"
	defaultIncompleteDir           = "~/Downloads/linkhaul/.incomplete"
	defaultAPIBind                 = "127.0.0.1:7488"
	defaultEngineURL               = "http://127.0.0.1:6800/jsonrpc"
	defaultEngineTimeoutSeconds    = 10
	defaultEngineReconnect         = ReconnectOnce
	defaultMaxConnectionsPerServer = 16
	defaultSplit                   = 16
	defaultMinSplitSize            = "1M"
	defaultUserAgent               = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultPageTimeoutSeconds      = 30
	defaultRedirectTimeoutSeconds  = 10
	defaultRequestsPerSecond       = 4
	defaultFilecryptBaseURL        = "https://filecrypt.cc"
	defaultPasswordInputName       = "password"
	defaultReconcileConcurrency    = 4
	defaultNotifyTimeoutSeconds    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogMaxSizeMB            = 20
	defaultLogMaxBackups           = 5
	defaultLogMaxAgeDays           = 30
)

// Engine reconnect policies.
const (
	ReconnectOnce   = "once"
	ReconnectNever  = "never"
	ReconnectAlways = "always"
)

func defaultHosters() []string {
	return []string{"rapidgator", "uploaded", "ddownload", "nitro", "ddl", "mega", "mediafire"}
}

func defaultFilecryptHosts() []string {
	return []string{"filecrypt.cc", "www.filecrypt.cc", "filecrypt.co", "www.filecrypt.co"}
}

func defaultCaptchaRules() []CaptchaRule {
	return []CaptchaRule{
		{Kind: "recaptcha_v2", Element: "div", Class: "g-recaptcha"},
		{Kind: "cutcaptcha", Element: "iframe", SrcContains: "cutcaptcha"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			LogDir:        defaultLogDir,
			DownloadDir:   defaultDownloadDir,
			IncompleteDir: defaultIncompleteDir,
			APIBind:       defaultAPIBind,
		},
		Engine: Engine{
			URL:                     defaultEngineURL,
			TimeoutSeconds:          defaultEngineTimeoutSeconds,
			Reconnect:               defaultEngineReconnect,
			MaxConnectionsPerServer: defaultMaxConnectionsPerServer,
			Split:                   defaultSplit,
			MinSplitSize:            defaultMinSplitSize,
		},
		Extract: Extract{
			UserAgent:              defaultUserAgent,
			PageTimeoutSeconds:     defaultPageTimeoutSeconds,
			RedirectTimeoutSeconds: defaultRedirectTimeoutSeconds,
			RequestsPerSecond:      defaultRequestsPerSecond,
			Hosters:                defaultHosters(),
			FilecryptHosts:         defaultFilecryptHosts(),
			FilecryptBaseURL:       defaultFilecryptBaseURL,
			PasswordInputName:      defaultPasswordInputName,
			Captcha:                defaultCaptchaRules(),
		},
		Reconcile: Reconcile{
			Concurrency: defaultReconcileConcurrency,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}

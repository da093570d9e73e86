package config

const (
	defaultConfigPath          = "~/.config/corrflow/config.toml"
	defaultStateDir            = "~/.local/share/corrflow"
	defaultLogDir              = "~/.local/share/corrflow/logs"
	defaultSocketName          = "corrflow.sock"
	defaultBind                = "127.0.0.1:7520"
	defaultReadTimeoutSeconds  = 15
	defaultWriteTimeoutSeconds = 30
	defaultIssuer              = ""
	defaultAdminLevel          = 1
	defaultManagerLevel        = 2
	defaultRateRequests        = 200
	defaultRateWindowSeconds   = 60
	defaultRateBurst           = 50
	defaultEmptyChain          = EmptyChainReject
	defaultCorrType            = "صادر"
	defaultPriority            = "normal"
	defaultDivisionStage       = "اعتماد الشعبة"
	defaultDepartmentStage     = "اعتماد القسم"
	defaultFinalStage          = "التوقيع النهائي"
	defaultCacheTTLSeconds     = 300
	defaultCacheSize           = 100
	defaultEffectWorkers       = 2
	defaultEffectQueueSize     = 256
	defaultEffectTimeout       = 10
	defaultShutdownTimeout     = 5
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Empty chain policies.
const (
	EmptyChainReject  = "reject"
	EmptyChainApprove = "approve"
)

// DefaultRejectionLabels lists the decision labels treated as a rejection.
func DefaultRejectionLabels() []string {
	return []string{"مرفوض", "rejected", "reject"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind:                defaultBind,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
		},
		Auth: Auth{
			Issuer:       defaultIssuer,
			AdminLevel:   defaultAdminLevel,
			ManagerLevel: defaultManagerLevel,
		},
		RateLimit: RateLimit{
			Enabled:       true,
			Requests:      defaultRateRequests,
			WindowSeconds: defaultRateWindowSeconds,
			Burst:         defaultRateBurst,
		},
		Workflow: Workflow{
			EmptyChain:      defaultEmptyChain,
			RejectionLabels: DefaultRejectionLabels(),
			DefaultType:     defaultCorrType,
			DefaultPriority: defaultPriority,
			DivisionStage:   defaultDivisionStage,
			DepartmentStage: defaultDepartmentStage,
			FinalStage:      defaultFinalStage,
		},
		Directory: Directory{
			CacheTTLSeconds: defaultCacheTTLSeconds,
			CacheSize:       defaultCacheSize,
		},
		Effects: Effects{
			Workers:                defaultEffectWorkers,
			QueueSize:              defaultEffectQueueSize,
			TimeoutSeconds:         defaultEffectTimeout,
			ShutdownTimeoutSeconds: defaultShutdownTimeout,
		},
		Notifications: Notifications{
			Inbox:          true,
			RequestTimeout: defaultNotifyTimeout,
			Approvals:      true,
			Copies:         true,
			Outcomes:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

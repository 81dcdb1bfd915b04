package config

type AppConfig struct {
	Server   ServerConfig
	Log      LogConfig
	Realtime RealtimeConfig
	Cleanup  CleanupConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	realtimeCfg, err := LoadRealtime()
	if err != nil {
		return AppConfig{}, err
	}
	cleanupCfg, err := LoadCleanup()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:   serverCfg,
		Log:      logCfg,
		Realtime: realtimeCfg,
		Cleanup:  cleanupCfg,
	}, nil
}

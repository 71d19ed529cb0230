package config

func Sample() Config {
	return Config{
		Version:       1,
		OverrideRoots: []string{"mods/patches", "mods/textures"},
		LogLevel:      "info",
		OpenAttempts:  defaultOpenAttempts,
		StatePath:     "modengine-state.json",
		RemoteRoots: []RemoteRootConfig{{
			Name: "Shared Mods",
			Host: "mods.example.net",
			Port: defaultSFTPPort,
			User: "modder",
			Auth: SFTPAuthConfig{
				Type:     "password",
				Password: "sftp_password",
			},
			RemotePath: "/srv/mods/ds3",
			LocalRoot:  "mods/shared-mods",
		}},
		Concurrency: ConcurrencyConfig{RemoteSyncParallelism: defaultRemoteSyncParallelism},
	}
}

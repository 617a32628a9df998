package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchroom/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	inviteCodeLength = configVar[int]{
		envKey:       "SERVER_INVITE_CODE_LENGTH",
		flagKey:      "invite-code-length",
		defaultValue: 6,
	}
	inviteCodeAttempts = configVar[int]{
		envKey:       "SERVER_INVITE_CODE_ATTEMPTS",
		flagKey:      "invite-code-attempts",
		defaultValue: 5,
	}
	readinessStaleAfter = configVar[int]{
		envKey:       "SERVER_READINESS_STALE_AFTER_SEC",
		flagKey:      "readiness-stale-after-sec",
		defaultValue: 30,
	}
	syncPollInterval = configVar[int]{
		envKey:       "SERVER_SYNC_POLL_INTERVAL_MS",
		flagKey:      "sync-poll-interval-ms",
		defaultValue: 500,
	}
	syncMaxWait = configVar[int]{
		envKey:       "SERVER_SYNC_MAX_WAIT_SEC",
		flagKey:      "sync-max-wait-sec",
		defaultValue: 15,
	}
	driftTolerance = configVar[float64]{
		envKey:       "SERVER_DRIFT_TOLERANCE_SEC",
		flagKey:      "drift-tolerance-sec",
		defaultValue: 3,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Int(inviteCodeLength.flagKey, inviteCodeLength.defaultValue, "Invite code length")
	pflag.Int(inviteCodeAttempts.flagKey, inviteCodeAttempts.defaultValue, "Invite code generation attempts")
	pflag.Int(readinessStaleAfter.flagKey, readinessStaleAfter.defaultValue, "Seconds before a readiness report is considered stale")
	pflag.Int(syncPollInterval.flagKey, syncPollInterval.defaultValue, "Consensus poll interval in milliseconds")
	pflag.Int(syncMaxWait.flagKey, syncMaxWait.defaultValue, "Maximum seconds to wait for consensus before a degraded broadcast")
	pflag.Float64(driftTolerance.flagKey, driftTolerance.defaultValue, "Playback drift tolerance in seconds")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)
	viper.BindEnv(inviteCodeLength.flagKey, inviteCodeLength.envKey)
	viper.BindEnv(inviteCodeAttempts.flagKey, inviteCodeAttempts.envKey)
	viper.BindEnv(readinessStaleAfter.flagKey, readinessStaleAfter.envKey)
	viper.BindEnv(syncPollInterval.flagKey, syncPollInterval.envKey)
	viper.BindEnv(syncMaxWait.flagKey, syncMaxWait.envKey)
	viper.BindEnv(driftTolerance.flagKey, driftTolerance.envKey)

	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)
	viper.SetDefault(inviteCodeLength.flagKey, inviteCodeLength.defaultValue)
	viper.SetDefault(inviteCodeAttempts.flagKey, inviteCodeAttempts.defaultValue)
	viper.SetDefault(readinessStaleAfter.flagKey, readinessStaleAfter.defaultValue)
	viper.SetDefault(syncPollInterval.flagKey, syncPollInterval.defaultValue)
	viper.SetDefault(syncMaxWait.flagKey, syncMaxWait.defaultValue)
	viper.SetDefault(driftTolerance.flagKey, driftTolerance.defaultValue)

	return &app.AppConfig{
		Host:                   viper.GetString(host.flagKey),
		Port:                   viper.GetInt(port.flagKey),
		LogLevel:               viper.GetString(logLevel.flagKey),
		RedisHost:              viper.GetString(redisHost.flagKey),
		RedisPort:              viper.GetInt(redisPort.flagKey),
		RedisPassword:          viper.GetString(redisPassword.flagKey),
		InviteCodeLength:       viper.GetInt(inviteCodeLength.flagKey),
		InviteCodeAttempts:     viper.GetInt(inviteCodeAttempts.flagKey),
		ReadinessStaleAfterSec: viper.GetInt(readinessStaleAfter.flagKey),
		SyncPollIntervalMs:     viper.GetInt(syncPollInterval.flagKey),
		SyncMaxWaitSec:         viper.GetInt(syncMaxWait.flagKey),
		DriftToleranceSec:      viper.GetFloat64(driftTolerance.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/anchorwatch/anchorsim/internal/sim"
)

// MemoryConfig holds the JSON run-recording backend settings.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// StorageConfig selects and configures the run-recording backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite struct {
		FilePath     string        `json:"filePath" mapstructure:"filePath"`
		DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	} `json:"sqlite" mapstructure:"sqlite"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.listen", ":3735")

	viper.SetDefault("runner.tickSeconds", 0.5)
	viper.SetDefault("runner.timeAcceleration", 1.0)
	viper.SetDefault("runner.sessionTag", "anchorsim")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "anchorsim")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.filePath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "anchorsim-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("websocket.enabled", false)
	viper.SetDefault("websocket.url", "ws://localhost:8080/simulation")
	viper.SetDefault("websocket.secret", "")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientId", "anchorsim")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topicPrefix", "anchorsim")
	viper.SetDefault("mqtt.qos", 0)

	// Physics and deployment tuning. These mirror sim.DefaultConfig so a
	// partial config file only overrides what it names.
	def := sim.DefaultConfig()
	viper.SetDefault("sim.massKg", def.MassKg)
	viper.SetDefault("sim.dragCoefficient", def.DragCoefficient)
	viper.SetDefault("sim.windForceCoefficient", def.WindForceCoefficient)
	viper.SetDefault("sim.weathervaneGain", def.WeathervaneGain)
	viper.SetDefault("sim.anchorAlignGain", def.AnchorAlignGain)
	viper.SetDefault("sim.angularDamping", def.AngularDamping)
	viper.SetDefault("sim.maxAngularVelocity", def.MaxAngularVelocity)
	viper.SetDefault("sim.initialLatitude", def.InitialLatitude)
	viper.SetDefault("sim.initialLongitude", def.InitialLongitude)
	viper.SetDefault("sim.initialHeading", def.InitialHeading)
	viper.SetDefault("sim.depthMeters", def.DepthMeters)
	viper.SetDefault("sim.bowHeightMeters", def.BowHeightMeters)
	viper.SetDefault("sim.seed", def.Seed)

	viper.SetDefault("sim.motor.forwardThrustN", def.MotorForwardThrustN)
	viper.SetDefault("sim.motor.reverseThrustN", def.MotorReverseThrustN)
	viper.SetDefault("sim.motor.minEngageSpeed", def.MotorMinEngageSpeed)
	viper.SetDefault("sim.motor.mediumSpeed", def.MotorMediumSpeed)
	viper.SetDefault("sim.motor.highSpeed", def.MotorHighSpeed)

	viper.SetDefault("sim.wind.baseSpeedKnots", def.Wind.BaseSpeedKnots)
	viper.SetDefault("sim.wind.baseDirectionDeg", def.Wind.BaseDirectionDeg)
	viper.SetDefault("sim.wind.gustMagnitudeKnots", def.Wind.GustMagnitudeKnots)
	viper.SetDefault("sim.wind.gustIntervalMinSec", def.Wind.GustIntervalMinSec)
	viper.SetDefault("sim.wind.gustIntervalMaxSec", def.Wind.GustIntervalMaxSec)
	viper.SetDefault("sim.wind.gustSmoothingRate", def.Wind.GustSmoothingRate)
	viper.SetDefault("sim.wind.shiftMagnitudeDeg", def.Wind.ShiftMagnitudeDeg)
	viper.SetDefault("sim.wind.shiftIntervalSec", def.Wind.ShiftIntervalSec)
	viper.SetDefault("sim.wind.oscillationAmpDeg", def.Wind.OscillationAmpDeg)
	viper.SetDefault("sim.wind.oscillationPeriodSec", def.Wind.OscillationPeriodSec)
	viper.SetDefault("sim.wind.jitterDeg", def.Wind.JitterDeg)

	viper.SetDefault("sim.tide.amplitudeMeters", def.Tide.AmplitudeMeters)
	viper.SetDefault("sim.tide.periodSec", def.Tide.PeriodSec)
	viper.SetDefault("sim.tide.meanMeters", def.Tide.MeanMeters)

	viper.SetDefault("sim.deployment.winchRateMps", def.Deployment.WinchRateMps)
	viper.SetDefault("sim.deployment.initialSlackMeters", def.Deployment.InitialSlackMeters)
	viper.SetDefault("sim.deployment.orientationHoldSec", def.Deployment.OrientationHoldSec)
	viper.SetDefault("sim.deployment.digInDeployMaxSec", def.Deployment.DigInDeployMaxSec)
	viper.SetDefault("sim.deployment.digInHoldSec", def.Deployment.DigInHoldSec)
	viper.SetDefault("sim.deployment.deepDeployMaxSec", def.Deployment.DeepDeployMaxSec)
	viper.SetDefault("sim.deployment.deepHoldSec", def.Deployment.DeepHoldSec)
	viper.SetDefault("sim.deployment.digInScope", def.Deployment.DigInScope)
	viper.SetDefault("sim.deployment.deepScope", def.Deployment.DeepScope)
	viper.SetDefault("sim.deployment.finalScope", def.Deployment.FinalScope)
	viper.SetDefault("sim.deployment.speedWindowTicks", def.Deployment.SpeedWindowTicks)
	viper.SetDefault("sim.deployment.speedVarianceMax", def.Deployment.SpeedVarianceMax)
	viper.SetDefault("sim.deployment.speedSmoothing", def.Deployment.SpeedSmoothing)
	viper.SetDefault("sim.deployment.retrieveMinRodeMeter", def.Deployment.RetrieveMinRodeMeter)

	viper.SetConfigName("anchorsim.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig materializes the storage section.
func GetStorageConfig() StorageConfig {
	var sc StorageConfig
	sc.Type = viper.GetString("storage.type")
	sc.Memory.OutputDir = viper.GetString("storage.memory.outputDir")
	sc.Memory.CompressOutput = viper.GetBool("storage.memory.compressOutput")
	sc.SQLite.FilePath = viper.GetString("storage.sqlite.filePath")
	sc.SQLite.DumpInterval = viper.GetDuration("storage.sqlite.dumpInterval")
	return sc
}

// SimConfig materializes the physics configuration from the loaded file.
func SimConfig() sim.Config {
	cfg := sim.Config{
		MassKg:               viper.GetFloat64("sim.massKg"),
		DragCoefficient:      viper.GetFloat64("sim.dragCoefficient"),
		WindForceCoefficient: viper.GetFloat64("sim.windForceCoefficient"),
		WeathervaneGain:      viper.GetFloat64("sim.weathervaneGain"),
		AnchorAlignGain:      viper.GetFloat64("sim.anchorAlignGain"),
		AngularDamping:       viper.GetFloat64("sim.angularDamping"),
		MaxAngularVelocity:   viper.GetFloat64("sim.maxAngularVelocity"),
		InitialLatitude:      viper.GetFloat64("sim.initialLatitude"),
		InitialLongitude:     viper.GetFloat64("sim.initialLongitude"),
		InitialHeading:       viper.GetFloat64("sim.initialHeading"),
		DepthMeters:          viper.GetFloat64("sim.depthMeters"),
		BowHeightMeters:      viper.GetFloat64("sim.bowHeightMeters"),
		Seed:                 viper.GetInt64("sim.seed"),

		MotorForwardThrustN: viper.GetFloat64("sim.motor.forwardThrustN"),
		MotorReverseThrustN: viper.GetFloat64("sim.motor.reverseThrustN"),
		MotorMinEngageSpeed: viper.GetFloat64("sim.motor.minEngageSpeed"),
		MotorMediumSpeed:    viper.GetFloat64("sim.motor.mediumSpeed"),
		MotorHighSpeed:      viper.GetFloat64("sim.motor.highSpeed"),
	}

	cfg.Wind = sim.WindConfig{
		BaseSpeedKnots:       viper.GetFloat64("sim.wind.baseSpeedKnots"),
		BaseDirectionDeg:     viper.GetFloat64("sim.wind.baseDirectionDeg"),
		GustMagnitudeKnots:   viper.GetFloat64("sim.wind.gustMagnitudeKnots"),
		GustIntervalMinSec:   viper.GetFloat64("sim.wind.gustIntervalMinSec"),
		GustIntervalMaxSec:   viper.GetFloat64("sim.wind.gustIntervalMaxSec"),
		GustSmoothingRate:    viper.GetFloat64("sim.wind.gustSmoothingRate"),
		ShiftMagnitudeDeg:    viper.GetFloat64("sim.wind.shiftMagnitudeDeg"),
		ShiftIntervalSec:     viper.GetFloat64("sim.wind.shiftIntervalSec"),
		OscillationAmpDeg:    viper.GetFloat64("sim.wind.oscillationAmpDeg"),
		OscillationPeriodSec: viper.GetFloat64("sim.wind.oscillationPeriodSec"),
		JitterDeg:            viper.GetFloat64("sim.wind.jitterDeg"),
	}

	cfg.Tide = sim.TideConfig{
		AmplitudeMeters: viper.GetFloat64("sim.tide.amplitudeMeters"),
		PeriodSec:       viper.GetFloat64("sim.tide.periodSec"),
		MeanMeters:      viper.GetFloat64("sim.tide.meanMeters"),
	}

	cfg.Deployment = sim.DeploymentConfig{
		WinchRateMps:         viper.GetFloat64("sim.deployment.winchRateMps"),
		InitialSlackMeters:   viper.GetFloat64("sim.deployment.initialSlackMeters"),
		OrientationHoldSec:   viper.GetFloat64("sim.deployment.orientationHoldSec"),
		DigInDeployMaxSec:    viper.GetFloat64("sim.deployment.digInDeployMaxSec"),
		DigInHoldSec:         viper.GetFloat64("sim.deployment.digInHoldSec"),
		DeepDeployMaxSec:     viper.GetFloat64("sim.deployment.deepDeployMaxSec"),
		DeepHoldSec:          viper.GetFloat64("sim.deployment.deepHoldSec"),
		DigInScope:           viper.GetFloat64("sim.deployment.digInScope"),
		DeepScope:            viper.GetFloat64("sim.deployment.deepScope"),
		FinalScope:           viper.GetFloat64("sim.deployment.finalScope"),
		SpeedWindowTicks:     viper.GetInt("sim.deployment.speedWindowTicks"),
		SpeedVarianceMax:     viper.GetFloat64("sim.deployment.speedVarianceMax"),
		SpeedSmoothing:       viper.GetFloat64("sim.deployment.speedSmoothing"),
		RetrieveMinRodeMeter: viper.GetFloat64("sim.deployment.retrieveMinRodeMeter"),
	}

	return cfg
}

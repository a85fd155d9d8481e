package bootstrap

import (
	"fmt"
	"os"

	"orthrus/storage"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger profile identifiers the configuration document selects with the
// logger element. The console profile is the default when the document
// names none.
const (
	LoggerConsole = "orthrus/logging.ZapConsole"
	LoggerJSON    = "orthrus/logging.ZapJSON"
)

// InitLogger initializes the zap logger with colored console output.
func InitLogger() (*zap.Logger, *zap.SugaredLogger, error) {
	// Create a colored console encoder config
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths

	// Create console encoder with colors
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	// Write to stdout
	core := zapcore.NewCore(
		consoleEncoder,
		zapcore.AddSync(os.Stdout),
		zapcore.DebugLevel,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitJSONLogger initializes a JSON logger for deployments that ship logs
// to an aggregator.
func InitJSONLogger() (*zap.Logger, *zap.SugaredLogger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	core := zapcore.NewCore(
		jsonEncoder,
		zapcore.AddSync(os.Stdout),
		zapcore.InfoLevel,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// LoggerForProfile builds the logger named by a profile identifier. The
// empty profile selects the console logger.
func LoggerForProfile(profile string) (*zap.Logger, *zap.SugaredLogger, error) {
	switch profile {
	case "", LoggerConsole:
		return InitLogger()
	case LoggerJSON:
		return InitJSONLogger()
	default:
		return nil, nil, fmt.Errorf("%w: %s", storage.ErrUnknownImplementation, profile)
	}
}

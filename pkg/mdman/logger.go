package mdman

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ossidisc/mdman/pkg/mdman/util"
)

const (
	logDirectory = "logs"
	logFilename  = "mdman-latest-run.log"

	buildTypeRelease = "release"
)

// NewLogger provides a logger instance for the whole program. Release builds
// log to a file at info level; anything else logs to stderr at debug level.
func NewLogger(buildType string) (*zap.SugaredLogger, error) {
	var loggerConfig zap.Config

	if buildType == buildTypeRelease {
		if err := util.EnsureDirExists(logDirectory); err != nil {
			return nil, fmt.Errorf("ensure log directory exists: %w", err)
		}

		loggerConfig = zap.NewProductionConfig()
		loggerConfig.Encoding = "console"
		loggerConfig.OutputPaths = []string{filepath.Join(logDirectory, logFilename)}
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
	}

	// all build types get the same humanly-readable log format
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	loggerConfig.EncoderConfig.EncodeCaller = nil

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logger.Sugar(), nil
}

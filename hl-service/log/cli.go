package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	hlservice "github.com/hyperlane-xyz/hyperlane-localnet/hl-service"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

type FormatType string

const (
	FormatText     FormatType = "text"
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

func (ft FormatType) String() string {
	return string(ft)
}

func (ft FormatType) Check() error {
	switch ft {
	case FormatText, FormatTerminal, FormatLogFmt, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unrecognized log format %q", string(ft))
	}
}

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output",
			Value:   "info",
			EnvVars: hlservice.PrefixEnvVar(envPrefix, "LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    FormatFlagName,
			Usage:   "Format the log output. Supported formats: 'text', 'terminal', 'logfmt', 'json'",
			Value:   FormatText.String(),
			EnvVars: hlservice.PrefixEnvVar(envPrefix, "LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: hlservice.PrefixEnvVar(envPrefix, "LOG_COLOR"),
		},
	}
}

type CLIConfig struct {
	Level  slog.Level
	Color  bool
	Format FormatType
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LevelInfo,
		Format: FormatText,
		Color:  isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// ReadCLIConfig reads the logger config from the CLI context.
// Invalid values fall back to the defaults, Check on the result is still advised.
func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	cfg := DefaultCLIConfig()
	if lvl, err := LevelFromString(ctx.String(LevelFlagName)); err == nil {
		cfg.Level = lvl
	}
	cfg.Format = FormatType(strings.ToLower(ctx.String(FormatFlagName)))
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg
}

func (cfg CLIConfig) Check() error {
	return cfg.Format.Check()
}

// NewLogger creates a geth logger writing to wr in the configured format.
func NewLogger(wr io.Writer, cfg CLIConfig) log.Logger {
	return log.NewLogger(NewHandler(wr, cfg))
}

func NewHandler(wr io.Writer, cfg CLIConfig) slog.Handler {
	switch cfg.Format {
	case FormatJSON:
		return JSONHandler(wr, cfg.Level)
	case FormatLogFmt:
		return LogfmtHandler(wr, cfg.Level)
	case FormatTerminal:
		return log.NewTerminalHandlerWithLevel(wr, cfg.Level, cfg.Color)
	default:
		return log.NewTerminalHandlerWithLevel(wr, cfg.Level, cfg.Color && isatty.IsTerminal(os.Stdout.Fd()))
	}
}

// SetGlobalLogHandler sets the log handler of the geth root logger.
func SetGlobalLogHandler(h slog.Handler) {
	log.SetDefault(log.NewLogger(h))
}

// SetupDefaults installs a terminal root logger, for use before flags are parsed.
func SetupDefaults() {
	SetGlobalLogHandler(NewHandler(os.Stdout, DefaultCLIConfig()))
}

// LevelFromString parses both Go (geth) and Rust (tracing) level names.
func LevelFromString(lvlString string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(lvlString)) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit", "fatal", "panic":
		return log.LevelCrit, nil
	default:
		return log.LevelDebug, fmt.Errorf("unknown level: %v", lvlString)
	}
}

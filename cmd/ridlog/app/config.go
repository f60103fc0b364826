package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

type OutputFormat string

var validOutputFormats = map[OutputFormat]struct{}{
	FormatText: {},
	FormatJSON: {},
}

type Config struct {
	DBPath    string
	SessionID int64 // zero lists all sessions
	Format    OutputFormat
	Verbose   bool
}

func NewConfig() *Config {
	return &Config{
		Format: FormatText,
	}
}

// NewConfigFromCLI parses the command line arguments, without the program name.
func NewConfigFromCLI(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	flags := flag.NewFlagSet("ridlog", flag.ContinueOnError)
	flags.SetOutput(output)

	var format string
	flags.StringVar(&c.DBPath, "db", "", "Path to the flight log database")
	flags.Int64Var(&c.SessionID, "s", 0, "Session ID, all sessions are listed when omitted")
	flags.StringVar(&format, "f", string(FormatText), "Output format. [text, json]")
	flags.BoolVar(&c.Verbose, "verbose", false, "Print every measurement of the session")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	c.Format = OutputFormat(strings.ToLower(format))

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID < 0 {
		err = fmt.Errorf("invalid session id: %d", c.SessionID)
	} else if _, ok := validOutputFormats[c.Format]; !ok {
		err = fmt.Errorf("invalid output format: %s", format)
	}

	if err != nil {
		flags.Usage()
		return nil, err
	}

	return c, nil
}

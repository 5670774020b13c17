package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatCSV   = "csv"
)

var outputFormats = []string{formatTable, formatJSON, formatYAML, formatCSV}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port int    `flag:"port,p" desc:"Port to serve on" default:"8080"`
	Host string `flag:"host" desc:"Host to bind to" default:"localhost"`

	// Output flags
	OutputFormat string `flag:"output,o" desc:"Output format (table|json|yaml|csv)" default:"table"`
	Quiet        bool   `flag:"quiet,q" desc:"Only print template identifiers" default:"false"`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 8080, "Port to serve on (overrides server.port)")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to (overrides server.host)")
	AddFlagValidation(cmd, "port", ValidatePort)
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", formatTable, "Output format ("+strings.Join(outputFormats, "|")+")")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Only print template identifiers")
	AddFlagValidation(cmd, "output", ValidateOutputFormat)
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags(cmd *cobra.Command) error {
	if cmd.Flags().Lookup("port") != nil {
		if f.Port < 0 || f.Port > 65535 {
			return fmt.Errorf("port must be between 0 and 65535, got %d", f.Port)
		}
		if strings.TrimSpace(f.Host) == "" {
			return fmt.Errorf("host cannot be empty")
		}
	}

	if cmd.Flags().Lookup("output") != nil {
		if err := ValidateOutputFormat(f.OutputFormat); err != nil {
			return err
		}
		if f.Quiet && cmd.Flags().Changed("output") && f.OutputFormat != formatTable {
			return fmt.Errorf("cannot specify both --quiet and --output %s", f.OutputFormat)
		}
	}

	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (system-assigned) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidateOutputFormat checks a --output value.
func ValidateOutputFormat(format string) error {
	for _, valid := range outputFormats {
		if strings.EqualFold(format, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s",
		format, strings.Join(outputFormats, ", "))
}

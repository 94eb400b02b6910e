package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitValidation = 3
	ExitConfig     = 4
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error

	// Code is the exit status; zero means ExitFailure.
	Code int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError wrapping err.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Message: err.Error(), Err: err}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// NewValidationError reports a command whose input failed validation, such
// as a catalog with lint errors.
func NewValidationError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err, Code: ExitValidation}
}

// ExitCode maps an error returned by a command to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != 0 {
		return cmdErr.Code
	}
	return ExitFailure
}

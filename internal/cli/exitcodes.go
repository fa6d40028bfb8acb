package cli

// Exit codes for the webr CLI
const (
	// ExitSuccess indicates every call completed
	ExitSuccess = 0

	// ExitRequestFailure indicates at least one call failed or reported an error
	ExitRequestFailure = 1

	// ExitParseError indicates a collection file could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates the runtime could not be configured
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

package core

// # Error Codes Reference
//
// Technical errors are mapped to short user messages with a code that can be
// quoted in support requests.
//
// # Alias Errors (ALIAS001-ALIAS099)
//
//	ALIAS001 - Ambiguous alias: more than one alias row has this module and name
//	           Action: Remove the duplicate rows from ir.model.data
//	           Patterns: "ambiguous alias"
//
//	ALIAS002 - Invalid alias: the row id cannot be used as an alias
//	           Action: Use module.name in the id column
//	           Patterns: "invalid alias ref"
//
// # Header Errors (HDR001-HDR099)
//
//	HDR001 - No key field: the file has neither a key nor a description column
//	         Action: Add a name, code or id column, or configure the key field
//	         Patterns: "no key field"
//
//	HDR002 - Empty source: the file has no header row
//	         Action: The first row must list the column names
//	         Patterns: "empty source"
//
//	HDR003 - Invalid config header: a parameter file needs user,name,value
//	         Action: Fix the header of the parameter file
//	         Patterns: "invalid parameter header"
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source unreadable: the input file could not be opened or read
//	         Action: Check the file name and the data path
//	         Patterns: "source unreadable"
//
//	SRC002 - File too large
//	         Action: Split the file into smaller files
//	         Patterns: "file too large", "request body too large"
//
//	SRC003 - No file in the upload form
//	         Patterns: "no file provided"
//
// # Store Errors (STORE001-STORE099)
//
//	STORE001 - Login failed       Patterns: "login failed"
//	STORE002 - Connection refused Patterns: "connection refused"
//	STORE003 - Timeout            Patterns: "deadline exceeded", "timeout"
//	STORE004 - Unknown model      Patterns: "unknown model"
//	STORE005 - Record not found   Patterns: "record not found"
//	STORE006 - Remote error       Patterns: "rpc error"
//	STORE007 - Not supported      Patterns: "operation not supported"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Create failed  Patterns: "create "
//	ROW002 - Write failed   Patterns: "write "
//	ROW003 - Lookup failed  Patterns: "search "
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Import aborted: a row failed while exit on error was set
//	         Patterns: "import aborted"
//	RUN002 - Cancelled      Patterns: "context canceled"
//	RUN003 - Busy           Patterns: "too many concurrent imports"
//	RUN004 - Unknown run    Patterns: "run not found"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. Order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Run and structural errors
	// =========================================================================
	{
		pattern: "import aborted",
		msg: UserMessage{
			Message: "The import stopped at the first failed row",
			Action:  "Fix the failed row or run without exit on error",
			Code:    "RUN001",
		},
	},
	{
		pattern: "no key field",
		msg: UserMessage{
			Message: "The file has no key or description column",
			Action:  "Add a name, code or id column, or configure the key field",
			Code:    "HDR001",
		},
	},
	{
		pattern: "empty source",
		msg: UserMessage{
			Message: "The file has no header row",
			Action:  "The first row must list the column names",
			Code:    "HDR002",
		},
	},
	{
		pattern: "invalid parameter header",
		msg: UserMessage{
			Message: "The parameter file header is invalid",
			Action:  "Use the columns user,name,value",
			Code:    "HDR003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The input file exceeds the size limit",
			Action:  "Split the file into smaller files",
			Code:    "SRC002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The input file exceeds the size limit",
			Action:  "Split the file into smaller files",
			Code:    "SRC002",
		},
	},
	{
		pattern: "source unreadable",
		msg: UserMessage{
			Message: "The input file could not be read",
			Action:  "Check the file name and the data path",
			Code:    "SRC001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "The upload did not contain a file",
			Action:  "Choose a CSV file and submit again",
			Code:    "SRC003",
		},
	},

	// =========================================================================
	// Alias errors
	// =========================================================================
	{
		pattern: "ambiguous alias",
		msg: UserMessage{
			Message: "More than one alias has this name",
			Action:  "Remove the duplicate rows from ir.model.data",
			Code:    "ALIAS001",
		},
	},
	{
		pattern: "invalid alias ref",
		msg: UserMessage{
			Message: "The row id cannot be used as an alias",
			Action:  "Use module.name in the id column",
			Code:    "ALIAS002",
		},
	},

	// =========================================================================
	// Store errors
	// =========================================================================
	{
		pattern: "login failed",
		msg: UserMessage{
			Message: "Could not log in to the store",
			Action:  "Check the login users and passwords",
			Code:    "STORE001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the store",
			Action:  "Please try again in a few moments",
			Code:    "STORE002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Please try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "The server is busy with other imports",
			Action:  "Please try again in a few minutes",
			Code:    "RUN003",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "This import run is not in the history",
			Action:  "The server keeps only recent runs; check the run id",
			Code:    "RUN004",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "The store did not answer in time",
			Action:  "Try a smaller file or try again later",
			Code:    "STORE003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The store did not answer in time",
			Action:  "Try a smaller file or try again later",
			Code:    "STORE003",
		},
	},
	{
		pattern: "unknown model",
		msg: UserMessage{
			Message: "The target entity does not exist in the store",
			Action:  "Check the entity name and installed modules",
			Code:    "STORE004",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "A referenced record does not exist",
			Action:  "Import the referenced records first",
			Code:    "STORE005",
		},
	},
	{
		pattern: "rpc error",
		msg: UserMessage{
			Message: "The store rejected the operation",
			Action:  "Review the row values against the entity's rules",
			Code:    "STORE006",
		},
	},
	{
		pattern: "operation not supported",
		msg: UserMessage{
			Message: "The store backend cannot run this operation",
			Action:  "Use the jsonrpc protocol for this import",
			Code:    "STORE007",
		},
	},

	// =========================================================================
	// Row errors
	// =========================================================================
	{
		pattern: "create ",
		msg: UserMessage{
			Message: "The record could not be created",
			Action:  "Check the failed rows and run the import again",
			Code:    "ROW001",
		},
	},
	{
		pattern: "write ",
		msg: UserMessage{
			Message: "The record could not be updated",
			Action:  "Check the failed rows and run the import again",
			Code:    "ROW002",
		},
	},
	{
		pattern: "search ",
		msg: UserMessage{
			Message: "Looking up the existing record failed",
			Action:  "Check the key columns of the failed rows",
			Code:    "ROW003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match, or ERR000.
//
// Example:
//
//	msg := MapError(fmt.Errorf("header: %w", ErrNoKeyField))
//	// msg.Code == "HDR001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError carries a technical error together with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

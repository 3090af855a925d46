package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (F001-F009)

	"F001": {
		Category:   CategoryConfig,
		Message:    "Duplicate provider identity",
		Detail:     "Two providers in the tree were registered under the same identity. Identities route widget callbacks back to their provider, so each must be unique within one builder.",
		Suggestion: "Give every row, header and footer provider its own identity string.",
	},
	"F002": {
		Category:   CategoryConfig,
		Message:    "Unresolved provider identity",
		Detail:     "A node names a provider identity that is not registered in the current tree.",
		Suggestion: "Make sure nodes are produced by providers of the tree passed to the builder.",
	},
	"F003": {
		Category:   CategoryConfig,
		Message:    "Duplicate key in section",
		Detail:     "Two rows of one section produced the same key. Keys identify rows across snapshots, so the batch was rejected and the widget keeps its previous content.",
		Suggestion: "Return a unique key from the provider's key function.",
	},
	"F004": {
		Category:   CategoryConfig,
		Message:    "Provider value type mismatch",
		Detail:     "A callback received a node whose value is not of the provider's type.",
		Suggestion: "Do not share node values between providers of different types.",
	},
	"F005": {
		Category:   CategoryConfig,
		Message:    "Unsupported provider",
		Detail:     "The registry was given a provider that is neither a row nor a part provider.",
		Suggestion: "Build providers with provider.NewRows, NewRow, NewHeader or NewFooter.",
	},

	// Runtime (F010-F019)

	"F010": {
		Category:   CategoryRuntime,
		Message:    "Builder closed",
		Detail:     "The builder was closed and no longer accepts updates or callbacks.",
		Suggestion: "Create a new builder instead of reusing a closed one.",
	},
	"F011": {
		Category:   CategoryRuntime,
		Message:    "Index path out of range",
		Detail:     "A widget callback addressed a section or row that is not displayed.",
		Suggestion: "Only address rows of the snapshot most recently applied to the widget.",
	},
	"F012": {
		Category:   CategoryRuntime,
		Message:    "Script does not match snapshot",
		Detail:     "An edit script was applied to a snapshot other than the one it was computed from.",
		Suggestion: "Apply batches in seq order, or ask for a resync.",
	},

	// Protocol (F020-F029)

	"F020": {
		Category:   CategoryProtocol,
		Message:    "Session closed",
		Detail:     "The websocket session ended.",
		Suggestion: "Reconnect to start a new session.",
	},
	"F021": {
		Category:   CategoryProtocol,
		Message:    "Send queue full",
		Detail:     "The client is not reading frames fast enough. The batch was not sent and will be folded into the next one.",
		Suggestion: "Increase server.send_queue or check the client connection.",
	},
	"F022": {
		Category:   CategoryProtocol,
		Message:    "Connection closed",
		Detail:     "The websocket connection to the server has ended.",
		Suggestion: "Reconnect, then let the first batch rebuild the list.",
	},

	// Archive (F030-F039)

	"F030": {
		Category:   CategoryArchive,
		Message:    "Unsupported archive URL",
		Detail:     "Archive URLs are plain paths, file:// URLs or s3://bucket/prefix URLs.",
		Suggestion: "Use file:///path/to/dir or s3://bucket/prefix.",
	},
	"F031": {
		Category:   CategoryArchive,
		Message:    "Snapshot not found",
		Detail:     "No snapshot document exists under the given key.",
		Suggestion: "Check the path, or list the archive with a prefix.",
	},
	"F032": {
		Category:   CategoryArchive,
		Message:    "Invalid archive key",
		Detail:     "Keys are relative slash-separated paths that stay inside the archive.",
		Suggestion: "Remove leading '..' elements from the key.",
	},

	// CLI (F040-F049)

	"F040": {
		Category:   CategoryCLI,
		Message:    "Invalid configuration",
		Detail:     "flix.yaml or a FLIX_ environment variable holds an invalid value.",
		Suggestion: "Run with --config to point at a valid file, or fix the reported field.",
	},
	"F041": {
		Category:   CategoryCLI,
		Message:    "Server failed",
		Detail:     "The HTTP server stopped with an error.",
		Suggestion: "Check that the listen address is free.",
	},
	"F042": {
		Category:   CategoryCLI,
		Message:    "Cannot read snapshot",
		Detail:     "A snapshot document could not be read or decoded.",
		Suggestion: "Pass a JSON document written by 'flix serve --record'.",
	},
	"F043": {
		Category:   CategoryCLI,
		Message:    "Cannot watch server",
		Detail:     "The websocket endpoint could not be reached or ended the connection with an error.",
		Suggestion: "Start it with 'flix serve' and pass its /ws URL, e.g. ws://localhost:8080/ws.",
	},
}

// Codes returns all registered error codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds an error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

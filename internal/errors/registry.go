package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config / CLI errors (E100-E199)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Project configuration not found",
		Detail:   "No loom.json was found in this directory or any parent directory.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Failed to read project configuration",
		Detail:   "loom.json exists but could not be read or parsed.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid project configuration",
		Detail:   "One or more fields in loom.json have invalid values.",
	},
	"E110": {
		Category: CategoryCLI,
		Message:  "Go toolchain not found",
		Detail:   "The go command is required to compile the UI module and the server binary.",
	},

	// ============================================
	// Watch errors (E200-E299)
	// ============================================

	"E201": {
		Category: CategoryWatch,
		Message:  "Could not establish file watches",
		Detail:   "The OS file notification mechanism could not be set up for any watch root. On Linux this often means the inotify watch limit was reached.",
	},
	"E202": {
		Category: CategoryWatch,
		Message:  "Watch root does not exist",
		Detail:   "A configured watch root is missing or is not a directory.",
	},

	// ============================================
	// Build step errors (E300-E399)
	// ============================================

	"E301": {
		Category: CategoryStep,
		Message:  "UI module compilation failed",
		Detail:   "The WebAssembly build of the UI package reported errors.",
	},
	"E302": {
		Category: CategoryStep,
		Message:  "Server compilation failed",
		Detail:   "The server binary build reported errors.",
	},
	"E303": {
		Category: CategoryStep,
		Message:  "Style processing failed",
		Detail:   "The style processor reported errors.",
	},
	"E304": {
		Category: CategoryStep,
		Message:  "Asset sync failed",
		Detail:   "Static assets could not be mirrored into the output directory.",
	},
	"E305": {
		Category: CategoryStep,
		Message:  "Binding generation failed",
		Detail:   "The JavaScript glue for the UI module could not be produced.",
	},
	"E310": {
		Category: CategoryStep,
		Message:  "Could not stage build output",
		Detail:   "The staging directory for in-flight build outputs could not be created or committed.",
	},

	// ============================================
	// Process supervision errors (E400-E499)
	// ============================================

	"E401": {
		Category: CategoryProcess,
		Message:  "Server binary could not be launched",
		Detail:   "The binary is missing, not executable, or failed to start.",
	},
	"E402": {
		Category: CategoryProcess,
		Message:  "Server process exited unexpectedly",
		Detail:   "The supervised server process terminated without being asked to stop.",
	},

	// ============================================
	// Publish errors (E500-E599)
	// ============================================

	"E501": {
		Category: CategoryPublish,
		Message:  "Artifact upload failed",
		Detail:   "One or more build artifacts could not be uploaded to the configured bucket.",
	},
}

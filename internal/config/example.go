package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# todoapp configuration file
# Values can be overridden by TODOAPP_* environment variables or CLI flags

# SQLite database (relative to the working directory, supports ~ expansion)
db_path = "todo_app.db"

# bcrypt cost for newly registered passwords (4-31)
bcrypt_cost = 10

# Logging
log_level = "warn"      # debug, info, warn, error
log_format = "text"     # text, json, logfmt
log_timestamps = false
log_caller = false
# log_file = "~/.todoapp/todoapp.log"
`
}

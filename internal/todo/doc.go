// Package todo converts a user's tasks to and from a portable document.
//
// A document is an ordered list of entries with no ids and no owner:
//
//	[
//	  {
//	    "description": "buy milk",
//	    "completed": false
//	  },
//	  {
//	    "description": "pay rent",
//	    "completed": true
//	  }
//	]
//
// The same shape may be written as YAML when the file name ends in .yaml or
// .yml.
//
// # Validation
//
// Decoded documents are checked against an embedded JSON Schema
// (draft 2020-12): the top level must be an array, and every entry needs a
// non-empty string "description" and a boolean "completed". Unknown keys are
// ignored. Errors carry a path such as "[2].description".
//
// # Import
//
// Import appends every entry as a new task for the importing user inside one
// transaction. If any insert fails nothing from the document is kept.
// Entries are never matched or merged with existing tasks.
//
// # File Format
//
// When writing documents, the package uses:
//   - 2-space indentation
//   - Trailing newline
//   - Entry order equal to task id order
package todo

// Package registry owns all users and tasks and persists them to a flat file.
//
// The registry file format (tasks.json) follows the schema bundled as
// registry.schema.json:
//
//	{
//	  "users": {
//	    "1": {"name": "Alice", "email": "alice@example.com"}
//	  },
//	  "tasks": {
//	    "1": {
//	      "title": "Finish report",
//	      "description": "Complete Q1 financial report",
//	      "priority": "high",
//	      "owner_id": 1,
//	      "status": "pending",
//	      "due_date": "2024-01-08T00:00:00Z"
//	    }
//	  }
//	}
//
// Keys of "users" and "tasks" are the string form of the integer ids the
// registry assigns. A null or absent "due_date" means the task has no due
// date yet.
//
// # Validation
//
// The package supports two validation modes:
//
// 1. JSON Schema validation (when a schema file is provided):
//   - Full validation against JSON Schema draft-2020-12
//
// 2. Minimal fallback validation (when no schema is available):
//   - Key format checks (integer-string ids)
//   - Field checks (name, email, title, owner reference, priority and
//     status enums)
//   - No external files required
//
// Loading is deliberately more tolerant than validation: a task whose
// owner is missing is skipped, a due date that does not parse is dropped,
// and a missing status defaults to "pending". Validation is for telling a
// human the file is wrong; loading is for getting as much of it back as
// possible.
//
// # Task Status Values
//
//   - "pending": Task has not been completed
//   - "done": Task is complete
//
// # Priorities
//
//   - "low", "medium", "high"; anything else is coerced to "low"
//
// # File Format
//
// When writing registry files, the package uses:
//   - 2-space indentation
//   - Trailing newline
//   - Stable key ordering (via JSON marshaling)
package registry

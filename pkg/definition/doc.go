// Package definition turns the static schema a workflow type produces into
// an immutable Definition and memoizes it per type.
package definition

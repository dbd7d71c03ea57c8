// Package domain defines core data models, errors and interfaces shared across
// heartline. It contains plain types (wire/state) and contracts (interfaces) only.
package domain

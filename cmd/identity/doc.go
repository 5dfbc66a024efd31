// Package identity owns chat accounts: registration, lookup by username or
// id, and password hash upgrades.
//
// Stores hash passwords on creation through a PasswordHasher and map
// backend uniqueness failures to ConflictError so HTTP handlers can answer
// without knowing which database is behind them.
package identity

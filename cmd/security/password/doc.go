// Package password hashes and verifies account passwords.
//
// New hashes are Argon2id in a PHC-like encoded string. Verify also accepts
// bcrypt hashes so accounts created before the switch keep working; callers
// use NeedsRehash to upgrade them on login.
//
// Hash strings are treated as untrusted input and refused when their
// parameters exceed reasonable bounds.
package password

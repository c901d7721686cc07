// Package ir provides the typed representation shared by every chronolog package.
//
// This package contains data types only. All other internal packages import
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - Atoms, literals and rules are immutable once built
//   - Time is a discrete, non-negative integer timestep, never wall-clock time
//   - Tokens are NFC normalized so equal-looking atoms compare equal
//   - A TimedFact with no intervals is static (true at every timestep)
package ir

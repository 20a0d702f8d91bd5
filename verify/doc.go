// Package verify checks the output of a capability strip.
//
// The rewritten binary is compiled with wazero, which runs full validation,
// and its function imports and exports are compared against the family that
// was removed. Any surviving entry is reported as a capability_present error.
package verify

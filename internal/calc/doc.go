// Package calc implements the laboratory formulas: unit conversion, C1V1
// and serial dilution, hemocytometer seeding, DNA normalization, bacterial
// generation time and centrifuge RCF.
//
// Every calculator takes an input struct, validates it (non-negative,
// finite numbers via struct tags; recognized unit strings) and returns a
// result struct or an *Error whose Kind is one of:
//
//   - KindInvalidInput: non-numeric, negative or out-of-range values
//   - KindInvalidUnit: unit strings not valid for the quantity
//   - KindDomain: valid numbers describing an impossible preparation
//
// The functions are pure: no I/O, no retries, no side effects.
package calc

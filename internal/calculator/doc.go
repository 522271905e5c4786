// Package calculator is the registry of lab calculators shared by the
// command line, the interactive menu, the web form and protocol files.
//
// Each Calculator declares its inputs as Fields (name, prompt, default)
// and turns raw text Inputs into an Outcome: a printable report, the
// history summary and details, and the typed result from package calc.
// Presentations never call calc directly; they look a calculator up by
// name and run it.
//
// Cost estimates are optional. When an Env carries a Pricer, serial
// dilutions price their diluent, DNA normalizations price the TE added
// and seeding can price the media.
package calculator

// Package ir provides the plan intermediate representation rewritten by the
// optimizer.
//
// A Block is a linear sequence of Instructions over a table of typed
// variables. Instructions name an operator by (module, function) and list
// their result variables first, followed by their parameters.
//
// This package contains the data model only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Variables are addressed by VarID (an index into Block.Vars), never by pointer
//   - Variable allocation is the only fallible operation (ErrOutOfMemory)
//   - Names are NFC-normalized so equivalent spellings denote the same variable
//   - Listings are deterministic; Fingerprint hashes the listing
package ir

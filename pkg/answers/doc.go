// Package answers models a firm's questionnaire answers.
//
// Answers arrive as loosely typed JSON or YAML. They are converted once, at the
// boundary, into a tagged Value union so every consumer (condition evaluation,
// template rendering, variable merging) applies the same coercion rules:
//
//   - numbers are held as exact decimals, so 85, 85.0 and "85" compare equal
//   - strings that look numeric are only treated as numbers when the comparison
//     asks for it (AsNumber), never implicitly
//   - null, missing and empty-string are distinct for storage but all count as
//     "not present" for the exists operator
//
// A Set is immutable by convention: Merge and With return copies.
package answers

// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML settings under ~/.neurovault with NEUROVAULT_* overrides
//   - PromptStore: editable prompt templates with live reload
package file

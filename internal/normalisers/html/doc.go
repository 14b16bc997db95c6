// Package html provides a Normaliser for HTML documents.
// It keeps the readable text and drops scripts, styles and markup.
package html

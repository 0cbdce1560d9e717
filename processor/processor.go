// Package processor provides content processing implementations.
package processor

import "github.com/textloom/textloom"

// ContentProcessor is an alias to the main package interface.
type ContentProcessor = textloom.ContentProcessor

// TextSpan is an alias to the main package type.
type TextSpan = textloom.TextSpan

// PlacementMap is an alias to the main package type.
type PlacementMap = textloom.PlacementMap

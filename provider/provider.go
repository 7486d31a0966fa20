// Package provider defines the AI provider interface and implementations.
package provider

import "github.com/ZaguanLabs/docdedup"

// AIProvider is the interface for AI translation backends.
// This is an alias to the main package interface for convenience.
type AIProvider = docdedup.AIProvider

// TranslateRequest is an alias to the main package type.
type TranslateRequest = docdedup.TranslateRequest

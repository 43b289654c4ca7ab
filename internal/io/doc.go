// Package ioutils provides file system and image assembly utilities.
//
// This package contains functions for:
//   - File writing
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Animation frame assembly
//
// # File Operations
//
//	// Write data to file
//	err := ioutils.WriteFile(ctx, "/path/to/file.png", content)
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/path/to/new/directory")
//
// # Filename Sanitization
//
// Use SanitizeFileName to remove invalid characters from filenames:
//
//	safe := ioutils.SanitizeFileName("works: 1/2") // Returns "works_ 1_2"
//
// # Animation Assembly
//
// Animated works arrive as an archive of still frames plus a delay table.
// The ImageService turns them into an animated GIF:
//
//	svc := ioutils.NewImageService()
//	data, err := svc.AssembleGIF(ctx, frames, delays, 1280)
package ioutils

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "errors"

// Sentinel errors for build failures. Check with errors.Is.
var (
	// ErrInvalidContent indicates content that is nil or not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrParseFailed indicates tree-sitter produced no usable tree.
	ErrParseFailed = errors.New("parse failed")

	// ErrContextCanceled indicates the build was canceled via context.
	ErrContextCanceled = errors.New("parse canceled")

	// ErrFileTooLarge indicates content above the builder's size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules holds the rule model, the immutable rule registry and the
// rule filter.
//
// A Rule pairs metadata (category, severity, priority, base confidence,
// enabled and domain-specific flags) with a Detector. The Registry is built
// once and only read afterwards, so it can be shared by concurrent runs.
// Select narrows a rule list for one run and orders it by priority.
package rules

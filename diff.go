package textloom

// DiffResult represents the difference between two versions of a document's
// extractable text.
type DiffResult struct {
	// Added contains spans that are new (not in the previous version).
	Added []TextSpan

	// Removed contains spans that were removed (not in the new version).
	Removed []TextSpan

	// Unchanged contains spans whose text exists in both versions.
	Unchanged []TextSpan

	// Modified contains pairs of spans where the text changed but the
	// position suggests the same element. Heuristic.
	Modified []ModifiedSpan
}

// ModifiedSpan represents a span whose text was modified in place.
type ModifiedSpan struct {
	Old TextSpan
	New TextSpan
}

// DiffStats contains summary statistics for a diff.
type DiffStats struct {
	Added     int
	Removed   int
	Unchanged int
	Modified  int
}

// Stats returns summary statistics for the diff.
func (d *DiffResult) Stats() DiffStats {
	return DiffStats{
		Added:     len(d.Added),
		Removed:   len(d.Removed),
		Unchanged: len(d.Unchanged),
		Modified:  len(d.Modified),
	}
}

// HasChanges returns true if there are any differences.
func (d *DiffResult) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0
}

// NeedsProcessing returns the spans that need a fresh provider call when
// reprocessing incrementally: new spans plus the new side of modified pairs.
func (d *DiffResult) NeedsProcessing() []TextSpan {
	result := make([]TextSpan, 0, len(d.Added)+len(d.Modified))
	result = append(result, d.Added...)
	for _, m := range d.Modified {
		result = append(result, m.New)
	}
	return result
}

// DiffSpans compares the extracted spans of two document versions by text
// content. Useful for incremental processing: only feed changed spans back
// through the pipeline, everything else comes from cache.
func DiffSpans(oldSpans, newSpans []TextSpan) *DiffResult {
	result := &DiffResult{}

	oldByHash := make(map[string]TextSpan)
	newByHash := make(map[string]TextSpan)

	for _, s := range oldSpans {
		oldByHash[HashText(s.Text)] = s
	}
	for _, s := range newSpans {
		newByHash[HashText(s.Text)] = s
	}

	for hash, oldSpan := range oldByHash {
		if _, exists := newByHash[hash]; exists {
			result.Unchanged = append(result.Unchanged, oldSpan)
		} else {
			result.Removed = append(result.Removed, oldSpan)
		}
	}

	for hash, newSpan := range newByHash {
		if _, exists := oldByHash[hash]; !exists {
			result.Added = append(result.Added, newSpan)
		}
	}

	return result
}

// DiffSpansWithPosition refines DiffSpans by pairing removed and added spans
// that sit at the same structural position, reporting them as modified.
func DiffSpansWithPosition(oldSpans, newSpans []TextSpan) *DiffResult {
	result := DiffSpans(oldSpans, newSpans)

	if len(result.Added) == 0 || len(result.Removed) == 0 {
		return result
	}

	matched := make(map[int]bool)
	removedMatched := make(map[int]bool)

	for ri, removed := range result.Removed {
		for ai, added := range result.Added {
			if matched[ai] {
				continue
			}
			if removed.Path.String() == added.Path.String() {
				result.Modified = append(result.Modified, ModifiedSpan{Old: removed, New: added})
				matched[ai] = true
				removedMatched[ri] = true
				break
			}
		}
	}

	newAdded := make([]TextSpan, 0, len(result.Added))
	for i, s := range result.Added {
		if !matched[i] {
			newAdded = append(newAdded, s)
		}
	}
	result.Added = newAdded

	newRemoved := make([]TextSpan, 0, len(result.Removed))
	for i, s := range result.Removed {
		if !removedMatched[i] {
			newRemoved = append(newRemoved, s)
		}
	}
	result.Removed = newRemoved

	return result
}

package audit

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Diff compares two flat snapshots over the union of their keys. A key is
// reported when its values differ or it is missing on one side. When either
// snapshot is nil no diff is computed and nil is returned.
func Diff(oldValues, newValues map[string]any) Changes {
	if oldValues == nil || newValues == nil {
		return nil
	}

	changes := make(Changes)
	for k, from := range oldValues {
		to, ok := newValues[k]
		if !ok || !equalValues(from, to) {
			changes[k] = Change{From: from, To: to}
		}
	}
	for k, to := range newValues {
		if _, ok := oldValues[k]; !ok {
			changes[k] = Change{From: nil, To: to}
		}
	}
	return changes
}

// equalValues treats values with the same JSON encoding as equal, so 1 and
// 1.0 decoded from different sources do not show up as changes.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

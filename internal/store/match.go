package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// normalize converts a value into its JSON-decoded form so that documents
// produced by different callers compare equal (ints become float64, structs
// become maps).
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDocument(doc Document) (Document, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeFilter(filter Filter) (Filter, error) {
	out := make(Filter, len(filter))
	for k, v := range filter {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// matches reports whether every filter field equals the document field.
// Both sides must be normalized.
func matches(doc Document, filter Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func numericField(doc Document, field string) (float64, bool) {
	switch v := doc[field].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func sortDocuments(docs []Document, sortBy string) {
	sortBy = strings.TrimSpace(sortBy)
	if sortBy == "" {
		return
	}
	desc := strings.HasPrefix(sortBy, "-")
	field := strings.TrimPrefix(sortBy, "-")
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i][field], docs[j][field])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func paginate(docs []Document, opts FindOptions) []Document {
	if opts.Offset > 0 {
		if opts.Offset >= len(docs) {
			return []Document{}
		}
		docs = docs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(docs) {
		docs = docs[:opts.Limit]
	}
	return docs
}

func deepCopy(doc Document) Document {
	out, err := normalizeDocument(doc)
	if err != nil {
		return doc.clone()
	}
	return out
}

// stamp assigns an id when absent and maintains createdAt/updatedAt on a
// normalized document.
func stamp(doc Document, now time.Time) {
	if id, ok := doc[IDField].(string); !ok || id == "" {
		doc[IDField] = uuid.NewString()
	}
	ts := now.UTC().Format(time.RFC3339Nano)
	if _, ok := doc["createdAt"]; !ok {
		doc["createdAt"] = ts
	}
	doc["updatedAt"] = ts
}

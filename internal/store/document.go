package store

// IDField is the reserved storage-native identifier key. It never appears in
// caller-supplied payloads and is re-exposed as "id" on the way out.
const IDField = "_id"

// PublicIDField is the caller-facing identifier key.
const PublicIDField = "id"

// Document is the storage shape: field name to value, identifier under IDField.
type Document map[string]any

// Record is the public shape returned to callers, identifier under "id".
type Record map[string]any

// Fields is a caller-supplied write payload after sanitization.
type Fields map[string]any

// ToPublic renames the internal identifier field to "id" and passes every
// other field through unchanged. A nil or empty document is an error: "found
// but empty" must never be confused with "not found" upstream.
func ToPublic(doc Document) (Record, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}
	rec := make(Record, len(doc))
	for k, v := range doc {
		if k == IDField {
			rec[PublicIDField] = v
			continue
		}
		rec[k] = v
	}
	return rec, nil
}

// ToStorage strips any caller-supplied identifier fields. The identifier is
// only ever set from the operation's own id parameter or generated by storage.
func ToStorage(payload map[string]any) Fields {
	fields := make(Fields, len(payload))
	for k, v := range payload {
		if k == IDField || k == PublicIDField {
			continue
		}
		fields[k] = v
	}
	return fields
}

// Merge applies delta on top of base without touching absent fields.
func Merge(base Document, delta Fields) Document {
	out := make(Document, len(base)+len(delta))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy so backends never hand out shared maps.
func Clone(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

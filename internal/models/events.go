package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ObjectRef identifies one uploaded object. Either field may be empty when the
// notification that carried it was malformed; callers must check before use.
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("gs://%s/%s", r.Bucket, r.Key)
}

// MediaType maps an object key to the image media type sent to the model.
func MediaType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// storageObjectData is the payload of a Cloud Storage object.finalized CloudEvent.
type storageObjectData struct {
	Bucket  string            `json:"bucket"`
	Name    string            `json:"name"`
	Records []json.RawMessage `json:"Records"`
}

// objectCreatedRecord is one entry of a batched object-created notification.
// Keys in this form are URL-encoded.
type objectCreatedRecord struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key string `json:"key"`
	} `json:"object"`
}

// DecodeObjectEvents turns a storage trigger payload into object references. It accepts a
// single Cloud Storage object payload or a {"Records": [...]} batch. A batch entry that
// cannot be decoded yields an empty ObjectRef so its siblings are still processed.
func DecodeObjectEvents(data []byte) ([]ObjectRef, error) {
	var payload storageObjectData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode storage event: %w", err)
	}

	if payload.Records == nil {
		return []ObjectRef{{Bucket: payload.Bucket, Key: payload.Name}}, nil
	}

	refs := make([]ObjectRef, 0, len(payload.Records))
	for _, raw := range payload.Records {
		var rec objectCreatedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			refs = append(refs, ObjectRef{})
			continue
		}
		key := rec.Object.Key
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		refs = append(refs, ObjectRef{Bucket: rec.Bucket.Name, Key: key})
	}
	return refs, nil
}

// QueueMessage is one delivery from the extraction queue.
type QueueMessage struct {
	// MessageID is assigned by the queue and becomes the persisted record's id.
	MessageID  string
	Body       []byte
	Attributes map[string]string
}

// pushEnvelope is the data of a Pub/Sub messagePublished CloudEvent.
type pushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		MessageID  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodePushMessages unwraps a Pub/Sub push envelope. Pub/Sub pushes one message per
// invocation, so the batch always has a single entry.
func DecodePushMessages(data []byte) ([]QueueMessage, error) {
	var env pushEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode push envelope: %w", err)
	}
	return []QueueMessage{{
		MessageID:  env.Message.MessageID,
		Body:       env.Message.Data,
		Attributes: env.Message.Attributes,
	}}, nil
}

// ChangeKind is the operation a change-feed entry describes.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeModify ChangeKind = "MODIFY"
	ChangeRemove ChangeKind = "REMOVE"
)

// ChangeRecord is one entry of the invoice table's change feed.
type ChangeRecord struct {
	EventID   string
	EventName ChangeKind
	// NewImage is the stored record in its attribute-typed form,
	// e.g. {"receiptNumber": {"stringValue": "R-001"}}. Nil for removals.
	NewImage map[string]json.RawMessage
}

type firestoreDocument struct {
	Name   string                     `json:"name"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// firestoreDocumentEvent is the JSON form of a Firestore document CloudEvent.
type firestoreDocumentEvent struct {
	Value    *firestoreDocument `json:"value"`
	OldValue *firestoreDocument `json:"oldValue"`
}

// DecodeFirestoreChange converts a Firestore document CloudEvent into a change record.
// The operation comes from the event type suffix; for ".written" events it is inferred
// from which of the old and new values are present.
func DecodeFirestoreChange(eventID, eventType string, data []byte) (ChangeRecord, error) {
	var evt firestoreDocumentEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return ChangeRecord{}, fmt.Errorf("decode firestore event: %w", err)
	}

	rec := ChangeRecord{EventID: eventID}
	switch {
	case strings.HasSuffix(eventType, ".created"):
		rec.EventName = ChangeInsert
	case strings.HasSuffix(eventType, ".updated"):
		rec.EventName = ChangeModify
	case strings.HasSuffix(eventType, ".deleted"):
		rec.EventName = ChangeRemove
	case strings.HasSuffix(eventType, ".written"):
		switch {
		case evt.Value != nil && evt.OldValue == nil:
			rec.EventName = ChangeInsert
		case evt.Value != nil:
			rec.EventName = ChangeModify
		default:
			rec.EventName = ChangeRemove
		}
	default:
		return ChangeRecord{}, fmt.Errorf("unsupported firestore event type %q", eventType)
	}

	if evt.Value != nil && rec.EventName != ChangeRemove {
		rec.NewImage = evt.Value.Fields
	}
	return rec, nil
}

// NotificationMessage is what gets published to the notification topic.
type NotificationMessage struct {
	Subject string
	Body    string
}

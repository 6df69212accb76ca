package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/metrics"
	"github.com/paymirror/paymirror/internal/pkg/remote"
	"github.com/sirupsen/logrus"
)

// TypeMismatchError means a payload's remote type tag does not match the
// entity type a handler tried to synchronize it as. This fails fast and
// writes nothing: it defends against handlers cross-wired to the wrong
// payloads.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("syncengine: cannot sync object tagged %q as %q", e.Got, e.Expected)
}

// Synchronizer converts remote object representations into mirrored
// records, resolving related objects recursively.
type Synchronizer struct {
	store    Store
	client   remote.Client
	schemas  *SchemaRegistry
	resolver *AccountResolver
	log      *logrus.Entry
}

func NewSynchronizer(store Store, client remote.Client, schemas *SchemaRegistry, resolver *AccountResolver) *Synchronizer {
	return &Synchronizer{
		store:    store,
		client:   client,
		schemas:  schemas,
		resolver: resolver,
		log:      applog.WithComponent("synchronizer"),
	}
}

// WithStore returns a synchronizer bound to a different store, typically a
// transaction scope. Resolver and schemas are shared.
func (s *Synchronizer) WithStore(store Store) *Synchronizer {
	clone := *s
	clone.store = store
	return &clone
}

// Schemas exposes the registry, for callers that need to enumerate entity
// types (resync tooling).
func (s *Synchronizer) Schemas() *SchemaRegistry {
	return s.schemas
}

// SyncFromRemoteData synchronizes one remote object and, depth-first, every
// related object it expands or requires. The returned record is the stored
// row after the upsert.
func (s *Synchronizer) SyncFromRemoteData(ctx context.Context, entityType string, data map[string]any, credential string) (Record, error) {
	start := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	currentIDs := map[string]bool{}
	return s.syncObject(ctx, entityType, data, credential, currentIDs, true)
}

func (s *Synchronizer) syncObject(ctx context.Context, entityType string, data map[string]any, credential string, currentIDs map[string]bool, topLevel bool) (Record, error) {
	schema, ok := s.schemas.Lookup(entityType)
	if !ok {
		return nil, fmt.Errorf("syncengine: no schema registered for entity type %q", entityType)
	}

	tag, _ := data["object"].(string)
	if tag == "" {
		return nil, fmt.Errorf("syncengine: remote data has no object type tag")
	}
	if tag != schema.EntityType {
		return nil, &TypeMismatchError{Expected: schema.EntityType, Got: tag}
	}

	id, _ := data["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("syncengine: remote %s data has no id", entityType)
	}

	// Cycle guard: an object higher in the recursion is mid-sync; record
	// the reference only, its own sync will finish the row.
	if currentIDs[id] {
		if rec, err := s.store.GetRecord(ctx, entityType, id); err == nil {
			return rec, nil
		}
		return Record{"id": id}, nil
	}
	currentIDs[id] = true
	defer delete(currentIDs, id)

	rec := Record{"id": id}
	if lm, ok := data["livemode"].(bool); ok {
		rec["livemode"] = lm
	}

	owner := ""
	// Top-level objects are always owner-resolved. Nested sub-objects
	// inherit the parent's context unless they carry their own explicit
	// account reference.
	if topLevel || refID(data["account"]) != "" {
		account, err := s.resolver.Resolve(ctx, data, credential)
		switch {
		case err == nil:
			owner = account.ID
			rec["owner_account_id"] = owner
		case errors.Is(err, ErrNoOwnerAccount):
			s.log.WithField("entity_type", entityType).WithField("id", id).
				Debug("no owner account determinable")
		default:
			return nil, err
		}
	}

	for _, f := range schema.Fields {
		v, present := data[f.Remote]
		if !present || v == nil {
			continue
		}
		out, err := f.Transform(v)
		if err != nil {
			return nil, fmt.Errorf("syncengine: %s.%s: %w", entityType, f.Remote, err)
		}
		rec[f.Local] = out
	}

	for _, rel := range schema.Relations {
		v, present := data[rel.Remote]
		if !present || v == nil {
			continue
		}
		localID, err := s.resolveRelation(ctx, rel, v, credential, owner, currentIDs)
		if err != nil {
			return nil, err
		}
		if localID != "" {
			rec[rel.Local] = localID
		}
	}

	if err := s.upsert(ctx, schema, id, rec); err != nil {
		return nil, err
	}

	if schema.PostSave != nil {
		if err := schema.PostSave(ctx, s.store, id, data); err != nil {
			return nil, err
		}
	}

	stored, err := s.store.GetRecord(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// resolveRelation turns one reference value into a local foreign-key ID,
// recursing into expanded objects and fetching required-but-unexpanded
// ones on demand. Fetches are strictly sequential, matching the source
// behavior.
func (s *Synchronizer) resolveRelation(ctx context.Context, rel Relation, v any, credential, owner string, currentIDs map[string]bool) (string, error) {
	switch ref := v.(type) {
	case map[string]any:
		// Expanded: recurse depth-first so the child row exists before the
		// parent references it.
		child, err := s.syncObject(ctx, rel.Target, ref, credential, currentIDs, false)
		if err != nil {
			return "", err
		}
		childID, _ := child["id"].(string)
		return childID, nil

	case string:
		if ref == "" {
			return "", nil
		}
		if currentIDs[ref] {
			return ref, nil
		}
		if _, err := s.store.GetRecord(ctx, rel.Target, ref); err == nil {
			return ref, nil
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}
		if !rel.Required {
			// Lazy: keep the bare reference, never fetch optional objects.
			return ref, nil
		}

		data, err := s.fetchRemote(ctx, rel.Target, ref, credential, owner)
		if err != nil {
			return "", fmt.Errorf("syncengine: expanding required relation %s (%s): %w", rel.Remote, ref, err)
		}
		child, err := s.syncObject(ctx, rel.Target, data, credential, currentIDs, false)
		if err != nil {
			return "", err
		}
		childID, _ := child["id"].(string)
		return childID, nil

	default:
		return "", fmt.Errorf("syncengine: relation %s has unexpected value type %T", rel.Remote, v)
	}
}

// fetchRemote performs an owner-resolved on-demand read so the fetched
// sub-object is retrieved with the credential scope of its owner.
func (s *Synchronizer) fetchRemote(ctx context.Context, entityType, id, credential, owner string) (map[string]any, error) {
	opts := remote.CallOptions{APIKey: credential}
	if credential == "" && owner != "" {
		opts.OnBehalfOf = owner
	}
	data, err := s.client.GetObject(ctx, entityType, id, opts)
	if err != nil {
		metrics.RemoteFetches.WithLabelValues(entityType, "error").Inc()
		return nil, err
	}
	metrics.RemoteFetches.WithLabelValues(entityType, "ok").Inc()
	return data, nil
}

// upsert writes the record: insert when new, update in place when known,
// with a single lookup retry when an insert loses a creation race against
// a concurrent webhook delivery of the same object.
func (s *Synchronizer) upsert(ctx context.Context, schema *Schema, id string, rec Record) error {
	_, err := s.store.GetRecord(ctx, schema.EntityType, id)
	switch {
	case err == nil:
		metrics.RecordsSynchronized.WithLabelValues(schema.EntityType, "update").Inc()
		return s.store.UpdateRecord(ctx, schema.EntityType, id, updateColumns(rec))

	case errors.Is(err, ErrNotFound):
		insertErr := s.store.InsertRecord(ctx, schema.EntityType, rec)
		if insertErr == nil {
			metrics.RecordsSynchronized.WithLabelValues(schema.EntityType, "insert").Inc()
			return nil
		}
		if !errors.Is(insertErr, ErrDuplicate) {
			return insertErr
		}
		// Two deliveries raced on a newly-created object and the other one
		// won the insert; retry the lookup once and fall back to update.
		if _, err := s.store.GetRecord(ctx, schema.EntityType, id); err != nil {
			return err
		}
		metrics.RecordsSynchronized.WithLabelValues(schema.EntityType, "update").Inc()
		return s.store.UpdateRecord(ctx, schema.EntityType, id, updateColumns(rec))

	default:
		return err
	}
}

// updateColumns strips the columns that never change after creation: the
// identity, the mode, the remote creation time, and any tombstone.
func updateColumns(rec Record) Record {
	out := Record{}
	for k, v := range rec {
		switch k {
		case "id", "livemode", "created", "date_purged":
			continue
		}
		out[k] = v
	}
	return out
}

// Delete removes a mirrored record in response to a deletion event.
// Tombstone entities keep their row with date_purged set; if the deletion
// arrives before the record was ever created, a tombstone stub is written
// so a late create event cannot resurrect it.
func (s *Synchronizer) Delete(ctx context.Context, entityType, id string) error {
	schema, ok := s.schemas.Lookup(entityType)
	if !ok {
		return fmt.Errorf("syncengine: no schema registered for entity type %q", entityType)
	}

	if !schema.Tombstone {
		metrics.RecordsSynchronized.WithLabelValues(entityType, "delete").Inc()
		return s.store.DeleteRecord(ctx, entityType, id)
	}

	now := time.Now().UTC()
	_, err := s.store.GetRecord(ctx, entityType, id)
	switch {
	case err == nil:
		metrics.RecordsSynchronized.WithLabelValues(entityType, "tombstone").Inc()
		return s.store.UpdateRecord(ctx, entityType, id, Record{"date_purged": now})

	case errors.Is(err, ErrNotFound):
		insertErr := s.store.InsertRecord(ctx, entityType, Record{"id": id, "date_purged": now})
		if errors.Is(insertErr, ErrDuplicate) {
			return s.store.UpdateRecord(ctx, entityType, id, Record{"date_purged": now})
		}
		if insertErr == nil {
			metrics.RecordsSynchronized.WithLabelValues(entityType, "tombstone").Inc()
		}
		return insertErr

	default:
		return err
	}
}

// ResyncAll re-lists every remote object of a type and synchronizes each,
// returning how many were written. Used by the operational resync command.
func (s *Synchronizer) ResyncAll(ctx context.Context, entityType, credential string) (int, error) {
	if _, ok := s.schemas.Lookup(entityType); !ok {
		return 0, fmt.Errorf("syncengine: no schema registered for entity type %q", entityType)
	}
	objects, err := s.client.ListObjects(ctx, entityType, remote.CallOptions{APIKey: credential})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, data := range objects {
		if _, err := s.SyncFromRemoteData(ctx, entityType, data, credential); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

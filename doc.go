/*
Package firemock is an in-memory stand-in for a Firestore client, meant for
tests. Application code exercises realistic create, read, update, delete and
query behavior against it without a network or a live backend.

# Store

The store is one tree of nested maps owned by the Client. The root maps
collection names to collections; a collection maps document IDs to
documents; a document maps field names to values. Subcollections live inside
their parent document as fields holding a map of documents, so deleting a
document deletes its subcollections too. Path depth parity tells the node
kinds apart: an odd number of segments names a collection, an even number
names a document.

References (DocumentRef, CollectionRef) hold only a path. Every call resolves
the path freshly, so all references see the same live state, including
fixtures written straight into Client.Data.

Reads and writes copy: a snapshot never aliases the store, and data passed
to Set is copied before it is stored.

# Updates

Update payload keys are dotted field paths. Payload values may be
transforms: Increment, ArrayUnion, ArrayRemove, Delete and ServerTimestamp.
They are applied in a fixed order: increments and unions are computed
from the document as it was before the update, then plain fields are written,
then deletes run, then array removals. The document is replaced in one step,
so a failing update leaves it untouched.

A map value replaces its field wholesale, so Delete and ArrayRemove must be
addressed by a dotted path such as "m.arr". Placed inside a map value they
are rejected with InvalidArgument. Increment, ArrayUnion and
ServerTimestamp work at any depth.

# Queries

Query is an immutable builder. Documents runs, in order: the collection's
documents in ascending ID order, filters, sorting, the start cursor, the end
cursor, the offset, and the limit. A cursor matches the first document
in the current order whose fields equal the cursor values; if none match
the result is empty.

# Transactions

Transactions buffer writes and apply them on Commit, all or nothing. Reads
inside a transaction are not isolated. There is no internal locking; share a
Client between goroutines only with external synchronization.

# Fixtures

Besides writing to Client.Data directly, a store can be loaded from JSON
(LoadJSON), YAML (LoadYAML), or a Bolt archive (SaveArchive, LoadArchive).
*/
package firemock

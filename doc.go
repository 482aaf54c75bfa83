// Package formstore is the persistence and duplication core of a form-builder
// content system. Entity types are declared as schemas and registered with a
// Registry, which hands out one Manager per kind. Managers provide CRUD on
// top of a RowStore, a multi-valued meta store per record, declarative
// queries with cached id-list results, and parent/child relationship
// traversal. The Duplicator deep-copies an entity subtree in two passes,
// remapping parent links and sibling references through a translation table.
//
// Caching is write-through with generation-counter invalidation: every cache
// group keeps a last_changed token that is embedded in query cache keys and
// refreshed on each mutation, so stale query entries become unreachable in
// O(1) and age out via TTL. A missing or failing cache degrades every
// operation to the row store.
package formstore

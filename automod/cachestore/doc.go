// Component for caching per-chat data (as JSON) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory. The settings layer uses it to keep chat policies off the database on the hot message path.
package cachestore

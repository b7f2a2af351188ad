// Moderation automation engine for group chats.
//
// This package (`github.com/iris-chat/warden/automod`) contains a rules engine which checks every group message against flood detection and an ordered set of content rules, keeps a per-user strike ledger, escalates repeat offenders to mutes, kicks, or bans, and records every action in an audit log. Chat admins manage the same state through an admin API (manual warns, mutes, chat locks, filters, policy).
//
// The engine itself lives in the `engine` sub-package and is aliased here; content rules are in `rules`, and `cmd/warden` is a daemon built on this package.
package automod

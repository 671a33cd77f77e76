/*
Package ledger records evaluated rolls per channel and replays them for audit.

A channel is whatever groups rolls for a host: a table, a chat room, a
campaign. Writes to one channel are serialized with a reference-counted local
lock and, when configured, a distributed lock so several replicas can share a
store. Replay restores the stored term tree and checks it still adds up to the
recorded total.
*/
package ledger

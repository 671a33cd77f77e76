/*
Package ports defines the driven ports (interfaces) rollkit hosts are built on.

These interfaces decouple the adapters (HTTP, MCP, CLI) from storage backends
and from the engine itself, so every piece can be swapped or faked in tests.

# Key Interfaces

  - Roller: Parses, evaluates and replays formulas.
  - RollStore: Persists evaluated rolls per channel.
  - MacroLibrary: Resolves named formulas.
  - DistributedLocker: Provides distributed locking for concurrent ledger writes.
*/
package ports
